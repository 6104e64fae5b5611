// Package observe - подписка на изменения данных с явной отпиской.
package observe

import "sync"

// Result - загруженные данные либо ошибка загрузки
type Result[T any] struct {
	Data T
	Err  error
}

func Success[T any](data T) Result[T] {
	return Result[T]{Data: data}
}

func Failure[T any](err error) Result[T] {
	return Result[T]{Err: err}
}

func (r Result[T]) Succeeded() bool {
	return r.Err == nil
}

type Observer[T any] func(Result[T])

// Subject хранит подписчиков и рассылает им результаты.
// Наблюдатели вызываются синхронно, вне блокировки.
type Subject[T any] struct {
	mtx       sync.RWMutex
	next      uint64
	observers map[uint64]Observer[T]
}

func NewSubject[T any]() *Subject[T] {
	return &Subject[T]{
		observers: make(map[uint64]Observer[T]),
	}
}

// Subscribe возвращает функцию отписки, повторный вызов безопасен
func (s *Subject[T]) Subscribe(observer Observer[T]) (unsubscribe func()) {
	s.mtx.Lock()
	id := s.next
	s.next++
	s.observers[id] = observer
	s.mtx.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mtx.Lock()
			delete(s.observers, id)
			s.mtx.Unlock()
		})
	}
}

func (s *Subject[T]) Publish(result Result[T]) {
	s.mtx.RLock()
	observers := make([]Observer[T], 0, len(s.observers))
	for _, o := range s.observers {
		observers = append(observers, o)
	}
	s.mtx.RUnlock()

	for _, o := range observers {
		o(result)
	}
}

func (s *Subject[T]) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()
	return len(s.observers)
}
