// Package pubsub implements a minimal publish/subscribe mechanism, used to
// fan out state and configuration updates inside the daemon.
package pubsub

import (
	"log/slog"
	"sync"
)

// Publisher fans out values of type T to all subscribed channels.
type Publisher[T any] struct {
	subs   map[chan T]struct{}
	logger *slog.Logger
	lock   sync.RWMutex
}

// New returns a new Publisher.
func New[T any](logger *slog.Logger) *Publisher[T] {
	return &Publisher[T]{
		subs:   make(map[chan T]struct{}),
		logger: logger,
	}
}

// Subscribe registers the caller and returns the channel on which it will
// receive all values published after this call. Publish blocks until every
// subscriber has received the value, so subscribers must consume promptly.
func (p *Publisher[T]) Subscribe() chan T {
	p.lock.Lock()
	defer p.lock.Unlock()
	ch := make(chan T)
	p.subs[ch] = struct{}{}
	p.logger.Debug("subscriber added", slog.Int("subscribers", len(p.subs)))
	return ch
}

// Unsubscribe removes a channel previously returned by Subscribe.
func (p *Publisher[T]) Unsubscribe(ch chan T) {
	p.lock.Lock()
	defer p.lock.Unlock()
	delete(p.subs, ch)
	p.logger.Debug("subscriber removed", slog.Int("subscribers", len(p.subs)))
}

// Publish sends value to all current subscribers.
func (p *Publisher[T]) Publish(value T) {
	p.lock.RLock()
	defer p.lock.RUnlock()
	for ch := range p.subs {
		ch <- value
	}
}

// Subscribers returns the current number of subscribers.
func (p *Publisher[T]) Subscribers() int {
	p.lock.RLock()
	defer p.lock.RUnlock()
	return len(p.subs)
}
