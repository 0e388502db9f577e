package event

import (
	"errors"
	"sync"
	"time"
)

type Stream[E any] interface {
	ID() string
	Notify(event E, timeout time.Duration) error
	Close()
}

// SelectorStream buffers events that pass a selector, exposing them as a
// channel. A full buffer that stays full past the notify timeout closes the
// stream rather than block the producer.
type SelectorStream[E, T any] struct {
	sync.Mutex

	id string

	closed   bool
	ch       chan T
	selector func(E) (T, bool)
}

func NewSelectorStream[E, T any](
	id string,
	bufferSize int,
	selector func(event E) (T, bool),
) *SelectorStream[E, T] {
	return &SelectorStream[E, T]{
		id:       id,
		ch:       make(chan T, bufferSize),
		selector: selector,
	}
}

func (s *SelectorStream[E, T]) ID() string {
	return s.id
}

func (s *SelectorStream[E, T]) Notify(event E, timeout time.Duration) error {
	msg, ok := s.selector(event)
	if !ok {
		return nil
	}

	s.Lock()
	if s.closed {
		s.Unlock()
		return errors.New("cannot notify closed stream")
	}

	select {
	case s.ch <- msg:
	case <-time.After(timeout):
		s.Unlock()
		s.Close()
		return errors.New("timed out sending message to streamCh")
	}

	s.Unlock()
	return nil
}

func (s *SelectorStream[E, T]) Channel() <-chan T {
	return s.ch
}

func (s *SelectorStream[E, T]) Close() {
	s.Lock()
	defer s.Unlock()

	if s.closed {
		return
	}

	s.closed = true
	close(s.ch)
}
