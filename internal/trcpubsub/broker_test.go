package trcpubsub_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sessiontrace/trc/internal/trcpubsub"
)

func TestBrokerPublishSubscribe(t *testing.T) {
	t.Parallel()

	var (
		ctx, cancel = context.WithCancel(context.Background())
		broker      = trcpubsub.NewBroker(func(s string) string { return "<" + s + ">" })
		ch          = make(chan string, 2)
		done        = make(chan trcpubsub.Stats, 1)
	)

	go func() {
		stats, _ := broker.Subscribe(ctx, func(s string) bool { return s != "<skip>" }, ch)
		done <- stats
	}()

	// Wait for the subscription to become active.
	for deadline := time.Now().Add(time.Second); time.Now().Before(deadline); {
		if _, err := broker.Stats(ctx, ch); err == nil {
			break
		}
		time.Sleep(time.Millisecond)
	}

	broker.Publish(ctx, "alice")
	broker.Publish(ctx, "skip")
	broker.Publish(ctx, "bob")
	broker.Publish(ctx, "carol") // buffer full, dropped

	if want, have := "<alice>", <-ch; want != have {
		t.Errorf("first: want %q, have %q", want, have)
	}
	if want, have := "<bob>", <-ch; want != have {
		t.Errorf("second: want %q, have %q", want, have)
	}

	cancel()
	stats := <-done

	if want, have := (trcpubsub.Stats{Skips: 1, Sends: 2, Drops: 1}), stats; want != have {
		t.Errorf("stats: want %s, have %s", want, have)
	}
}

func TestBrokerDoubleSubscribe(t *testing.T) {
	t.Parallel()

	var (
		ctx, cancel = context.WithCancel(context.Background())
		broker      = trcpubsub.NewBroker[int](nil)
		ch          = make(chan int)
		errc        = make(chan error, 1)
	)
	defer cancel()

	go func() {
		_, err := broker.Subscribe(ctx, nil, ch)
		errc <- err
	}()

	for deadline := time.Now().Add(time.Second); time.Now().Before(deadline); {
		if _, err := broker.Stats(ctx, ch); err == nil {
			break
		}
		time.Sleep(time.Millisecond)
	}

	if want, have := 1, broker.Subscribers(); want != have {
		t.Errorf("subscribers: want %d, have %d", want, have)
	}

	if _, err := broker.Subscribe(ctx, nil, ch); !errors.Is(err, trcpubsub.ErrAlreadySubscribed) {
		t.Errorf("second subscribe: want %v, have %v", trcpubsub.ErrAlreadySubscribed, err)
	}

	cancel()
	<-errc

	if want, have := 0, broker.Subscribers(); want != have {
		t.Errorf("subscribers after cancel: want %d, have %d", want, have)
	}
	if _, err := broker.Stats(ctx, ch); !errors.Is(err, trcpubsub.ErrNotSubscribed) {
		t.Errorf("stats after cancel: want %v, have %v", trcpubsub.ErrNotSubscribed, err)
	}
}

func TestBrokerNoSubscribers(t *testing.T) {
	t.Parallel()

	var calls int
	broker := trcpubsub.NewBroker(func(n int) int { calls++; return n })
	broker.Publish(context.Background(), 1)

	if want, have := 0, calls; want != have {
		t.Errorf("transform calls: want %d, have %d", want, have)
	}
}
