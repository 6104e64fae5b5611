package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"
	"todoapp/internal/config"
	"todoapp/internal/fixtures"
	"todoapp/internal/handlers"
	"todoapp/internal/logger"
	"todoapp/internal/metrics"
	"todoapp/internal/middleware"
	"todoapp/internal/queue"
	"todoapp/internal/repository"
	"todoapp/internal/repository/task/inmemory"
	"todoapp/internal/repository/task/postgres"
	taskredis "todoapp/internal/repository/task/redis"
	"todoapp/internal/repository/task/sqlite"
	"todoapp/internal/service"
	"todoapp/internal/worker"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config     *config.Config
	server     *http.Server
	router     *chi.Mux
	registry   *prometheus.Registry
	repository *repository.TasksRepository
	service    *service.TaskService
	worker     *worker.StatsWorker
	shutdowns  []func() // выполняются в обратном порядке
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func(), 0),
	}
}

// Init собирает зависимости. При ошибке уже созданные ресурсы освобождаются.
func (a *App) Init(ctx context.Context) (err error) {
	if err := logger.Init(a.config.Logging.Development); err != nil {
		return fmt.Errorf("инициализация логгера: %w", err)
	}
	a.shutdowns = append(a.shutdowns, func() {
		logger.Info("Завершение работы логгирования...")
		logger.Sync()
	})
	defer func() {
		if err != nil {
			a.Shutdown()
		}
	}()

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	store, err := a.initStore(ctx)
	if err != nil {
		return err
	}

	options := []repository.Option{repository.WithMetrics(metrics.NewRepository(a.registry))}
	if a.config.Kafka.Brokers != "" {
		publisher := queue.NewKafkaPublisher(a.config.Kafka.Brokers, a.config.Kafka.Topic)
		options = append(options, repository.WithPublisher(publisher))
		a.shutdowns = append(a.shutdowns, func() {
			if err := publisher.Close(); err != nil {
				logger.Warn("Queue: Ошибка закрытия", zap.Error(err))
			}
		})
	}
	a.repository = repository.NewTasksRepository(store, options...)

	if err := a.seed(ctx); err != nil {
		return err
	}

	a.service = service.NewTaskService(a.repository)
	a.worker = worker.NewStatsWorker(a.repository, metrics.NewTasks(a.registry), a.config.Worker.StatsInterval)

	a.initRouter()
	a.server = &http.Server{
		Addr:              a.config.GetServerAddr(),
		Handler:           otelhttp.NewHandler(a.router, "todoapp"),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func (a *App) initStore(ctx context.Context) (repository.Store, error) {
	cfg := a.config
	logger.Info("Repository: Выбор хранилища", zap.String("type", cfg.Repository.Type))

	switch cfg.Repository.Type {
	case config.RepoInMemory:
		return inmemory.NewTaskStorage(), nil

	case config.RepoSQLite:
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("открытие sqlite: %w", err)
		}
		a.shutdowns = append(a.shutdowns, func() {
			if err := store.Close(); err != nil {
				logger.Warn("Repository: Ошибка закрытия SQLite", zap.Error(err))
			}
		})
		return store, nil

	case config.RepoPostgres:
		if err := postgres.Migrate(cfg.Database.URL); err != nil {
			return nil, err
		}
		store, err := postgres.New(ctx, cfg.Database.URL, postgres.PoolConfig{
			MaxConns:        int32(cfg.Database.MaxConnections),
			MinConns:        int32(cfg.Database.MinConnections),
			MaxConnIdleTime: cfg.Database.IdleTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("подключение к postgres: %w", err)
		}
		a.shutdowns = append(a.shutdowns, store.Close)
		return store, nil

	case config.RepoRedis:
		store, err := taskredis.Open(ctx, cfg.Redis.URL, cfg.Redis.Prefix)
		if err != nil {
			return nil, fmt.Errorf("подключение к redis: %w", err)
		}
		a.shutdowns = append(a.shutdowns, func() {
			if err := store.Close(); err != nil {
				logger.Warn("Repository: Ошибка закрытия Redis", zap.Error(err))
			}
		})
		return store, nil
	}
	return nil, fmt.Errorf("неизвестный тип репозитория %q", cfg.Repository.Type)
}

func (a *App) seed(ctx context.Context) error {
	path := a.config.Repository.SeedFile
	if path == "" {
		return nil
	}
	tasks, err := fixtures.LoadFile(path)
	if err != nil {
		return fmt.Errorf("загрузка начальных задач: %w", err)
	}
	return fixtures.Seed(ctx, a.repository, tasks)
}

func (a *App) initRouter() {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics(metrics.NewHTTP(a.registry)))
	r.Use(middleware.RateLimit(a.config.Server.RateLimit))
	if origins := splitList(a.config.Server.CORSOrigins); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{Registry: a.registry}))
	handlers.NewTaskHandler(a.service).Register(r, a.config.Server.RequestTimeout)

	a.router = r
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// Handler - корневой обработчик, удобен для тестов
func (a *App) Handler() http.Handler {
	return a.server.Handler
}

// Run блокируется до отмены ctx или ошибки сервера, затем освобождает ресурсы
func (a *App) Run(ctx context.Context) error {
	defer a.Shutdown()

	// отмена baseCtx закрывает долгие запросы вроде потока событий
	baseCtx, cancelBase := context.WithCancel(context.Background())
	defer cancelBase()
	a.server.BaseContext = func(net.Listener) context.Context { return baseCtx }
	a.server.RegisterOnShutdown(cancelBase)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP: Сервер запущен", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("запуск сервера: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.worker.Start(gctx)
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("HTTP: Остановка сервера")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("остановка сервера: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (a *App) Shutdown() {
	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		a.shutdowns[i]()
	}
	a.shutdowns = nil
}
