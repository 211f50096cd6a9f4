// Package trcpubsub provides a generic, non-blocking publish/subscribe broker.
package trcpubsub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

var (
	// ErrAlreadySubscribed is returned when a channel subscribes twice.
	ErrAlreadySubscribed = errors.New("already subscribed")

	// ErrNotSubscribed is returned for stats of an unknown channel.
	ErrNotSubscribed = errors.New("not subscribed")
)

// Broker fans published values out to subscribers. Publish never blocks: if a
// subscriber's channel is full, the value is dropped for that subscriber.
// Publishes may run concurrently with each other.
type Broker[T any] struct {
	transform func(T) T
	count     atomic.Int64

	mtx  sync.RWMutex
	subs map[chan<- T]*subscription[T]
}

type subscription[T any] struct {
	allow func(T) bool
	ch    chan<- T

	skips atomic.Uint64
	sends atomic.Uint64
	drops atomic.Uint64
}

func (s *subscription[T]) stats() Stats {
	return Stats{
		Skips: s.skips.Load(),
		Sends: s.sends.Load(),
		Drops: s.drops.Load(),
	}
}

// NewBroker returns an empty broker. If transform is non-nil, it's applied to
// each published value once, before it's offered to any subscriber, and only
// if there is at least one subscriber.
func NewBroker[T any](transform func(T) T) *Broker[T] {
	return &Broker[T]{
		transform: transform,
		subs:      map[chan<- T]*subscription[T]{},
	}
}

// Publish the value to every subscriber that allows it.
func (b *Broker[T]) Publish(ctx context.Context, val T) {
	if b.count.Load() <= 0 {
		return
	}

	b.mtx.RLock()
	defer b.mtx.RUnlock()

	if len(b.subs) <= 0 {
		return
	}

	if b.transform != nil {
		val = b.transform(val)
	}

	for _, sub := range b.subs {
		if !sub.allow(val) {
			sub.skips.Add(1)
			continue
		}
		select {
		case sub.ch <- val:
			sub.sends.Add(1)
		default:
			sub.drops.Add(1)
		}
	}
}

// Subscribe forwards allowed values to ch until the context is canceled. It
// blocks until then, and returns the final stats for the subscription, along
// with the context error. A nil allow function allows every value.
func (b *Broker[T]) Subscribe(ctx context.Context, allow func(T) bool, ch chan<- T) (Stats, error) {
	if allow == nil {
		allow = func(T) bool { return true }
	}

	sub := &subscription[T]{allow: allow, ch: ch}
	if err := b.add(sub); err != nil {
		return Stats{}, err
	}
	defer b.remove(ch)

	<-ctx.Done()

	return sub.stats(), ctx.Err()
}

func (b *Broker[T]) add(sub *subscription[T]) error {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	if _, ok := b.subs[sub.ch]; ok {
		return ErrAlreadySubscribed
	}

	b.subs[sub.ch] = sub
	b.count.Store(int64(len(b.subs)))
	return nil
}

func (b *Broker[T]) remove(ch chan<- T) {
	b.mtx.Lock()
	defer b.mtx.Unlock()

	delete(b.subs, ch)
	b.count.Store(int64(len(b.subs)))
}

// Stats returns the current stats for the subscription on ch.
func (b *Broker[T]) Stats(ctx context.Context, ch chan<- T) (Stats, error) {
	b.mtx.RLock()
	defer b.mtx.RUnlock()

	sub, ok := b.subs[ch]
	if !ok {
		return Stats{}, ErrNotSubscribed
	}

	return sub.stats(), nil
}

// Subscribers returns the number of active subscriptions.
func (b *Broker[T]) Subscribers() int {
	return int(b.count.Load())
}

// Stats about a single subscription.
type Stats struct {
	Skips uint64 `json:"skips"` // rejected by the filter
	Sends uint64 `json:"sends"`
	Drops uint64 `json:"drops"` // allowed, but the channel was full
}

func (s Stats) String() string {
	return fmt.Sprintf("skips=%d sends=%d drops=%d", s.Skips, s.Sends, s.Drops)
}
