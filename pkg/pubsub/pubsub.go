// Package pubsub provides a basic Publish/Subscribe implementation with
// shutdown semantics: once a Publisher is closed, nothing is published
// anymore and all subscriber channels are closed.
package pubsub

import (
	"log/slog"
	"sync"
)

// Publisher allows clients to subscribe and sends them the information
// provided by Publish.
type Publisher[T any] struct {
	subscribers map[chan T]struct{}
	closed      bool
	logger      *slog.Logger
	lock        sync.RWMutex
}

// New returns a new Publisher.
func New[T any](logger *slog.Logger) *Publisher[T] {
	return &Publisher[T]{
		subscribers: make(map[chan T]struct{}),
		logger:      logger,
	}
}

// Subscribe registers the caller and returns a new channel on which it will
// receive updates. Subscribing to a closed Publisher returns a closed
// channel.
func (p *Publisher[T]) Subscribe() chan T {
	p.lock.Lock()
	defer p.lock.Unlock()
	ch := make(chan T, 1)
	if p.closed {
		close(ch)
		return ch
	}
	p.subscribers[ch] = struct{}{}
	p.logger.Debug("subscriber added", slog.Int("subscribers", len(p.subscribers)))
	return ch
}

// Unsubscribe removes the registered client/channel.
func (p *Publisher[T]) Unsubscribe(ch chan T) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.subscribers, ch)
	p.logger.Debug("subscriber removed", slog.Int("subscribers", len(p.subscribers)))
}

// Publish sends info to all registered clients. Publishing on a closed
// Publisher is a no-op.
func (p *Publisher[T]) Publish(info T) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	if p.closed {
		return
	}
	for ch := range p.subscribers {
		ch <- info
	}
}

// Close closes all subscriber channels and stops any further publication.
func (p *Publisher[T]) Close() {
	p.lock.Lock()
	defer p.lock.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for ch := range p.subscribers {
		close(ch)
		delete(p.subscribers, ch)
	}
}

// Subscribers returns the current number of subscribers.
func (p *Publisher[T]) Subscribers() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.subscribers)
}
