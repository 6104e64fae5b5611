// Package queue отправляет события изменения задач в Kafka.
package queue

import (
	"context"
	"encoding/json"
	"strings"
	"time"
	"todoapp/internal/logger"
	"todoapp/internal/repository"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const DefaultTopic = "task-events"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher реализует repository.EventPublisher.
// Ошибки доставки только логируются: запись в хранилище уже состоялась.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

var _ repository.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher принимает брокеры через запятую
func NewKafkaPublisher(brokers, topic string) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	w := &kafka.Writer{
		Addr:                   kafka.TCP(splitBrokers(brokers)...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           10 * time.Millisecond,
		Async:                  true,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("Queue: Не удалось доставить события", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}
	logger.Info("Queue: Публикация событий в Kafka", zap.String("brokers", brokers), zap.String("topic", topic))
	return newKafkaPublisher(w, topic)
}

func newKafkaPublisher(w messageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event repository.Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("Queue: Ошибка сериализации события", err, zap.String("type", string(event.Type)))
		return
	}

	// у массовых удалений нет идентификатора, ключ пустой
	var key []byte
	if event.TaskID != uuid.Nil {
		key = []byte(event.TaskID.String())
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
	})
	if err != nil {
		logger.Warn("Queue: Не удалось опубликовать событие", zap.String("type", string(event.Type)), zap.Error(err))
		return
	}
	logger.Debug("Queue: Событие опубликовано", zap.String("type", string(event.Type)), zap.String("topic", p.topic))
}

func (p *KafkaPublisher) Close() error {
	logger.Info("Queue: Закрытие писателя Kafka")
	return p.writer.Close()
}

func splitBrokers(brokers string) []string {
	var res []string
	for _, b := range strings.Split(brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			res = append(res, b)
		}
	}
	return res
}
