package trc_test

import (
	"context"
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/sessiontrace/trc"
)

// testTrace runs the properties every trace implementation must have against
// traces created by newTrace.
func testTrace(t *testing.T, newTrace func(ctx context.Context, source, category string) (context.Context, trc.Trace)) {
	t.Helper()
	t.Parallel()

	fresh := func() trc.Trace {
		_, tr := newTrace(context.Background(), "src", "foo")
		return tr
	}

	t.Run("IDs are unique", func(t *testing.T) {
		t.Parallel()

		seen := map[string]bool{}
		for i := 0; i < 100; i++ {
			id := fresh().ID()
			if seen[id] {
				t.Fatalf("duplicate ID %s", id)
			}
			seen[id] = true
		}
	})

	t.Run("Errorf marks the trace errored", func(t *testing.T) {
		t.Parallel()

		tr := fresh()
		ExpectEqual(t, false, tr.Errored())
		tr.Errorf("err")
		ExpectEqual(t, true, tr.Errored())
		tr.Finish()
		ExpectEqual(t, true, tr.Errored())
	})

	t.Run("Finish freezes the trace", func(t *testing.T) {
		t.Parallel()

		tr := fresh()
		tr.Tracef("first")
		tr.LazyTracef("second")
		ExpectEqual(t, false, tr.Finished())
		before := tr.Events()

		tr.Finish()
		d1 := tr.Duration()
		tr.Tracef("no-op")
		tr.LazyTracef("no-op")
		tr.Errorf("no-op")
		tr.LazyErrorf("no-op")
		tr.Finish()
		d2 := tr.Duration()

		ExpectEqual(t, true, tr.Finished())
		ExpectEqual(t, false, tr.Errored())
		ExpectEqual(t, d1, d2)
		AssertDeepEqual(t, before, tr.Events())
	})

	t.Run("Tracef evaluates immediately", func(t *testing.T) {
		t.Parallel()

		tr := fresh()
		a := []int{1, 2, 3}
		tr.Tracef("a=%v", a)
		a[0] = 0
		ExpectEqual(t, "a=[1 2 3]", tr.Events()[0].What)
	})

	t.Run("LazyTracef evaluates on read", func(t *testing.T) {
		t.Parallel()

		tr := fresh()
		a := []int{1, 2, 3}
		tr.LazyTracef("a=%v", a)
		a[0] = 0
		ExpectEqual(t, "a=[0 2 3]", tr.Events()[0].What)
	})

	t.Run("Errorf events are flagged", func(t *testing.T) {
		t.Parallel()

		tr := fresh()
		tr.Tracef("fine")
		tr.Errorf("broken")
		events := tr.Events()
		ExpectEqual(t, false, events[0].IsError)
		ExpectEqual(t, true, events[1].IsError)
	})

	t.Run("SetMaxEvents bounds events", func(t *testing.T) {
		t.Parallel()

		tr := fresh()
		defer tr.Finish()
		if _, ok := trc.SetMaxEvents(tr, 32); !ok {
			t.Fatalf("%T: SetMaxEvents had no effect", tr)
		}
		for i := 0; i < 32+17; i++ {
			tr.Tracef("event %d", i+1)
		}
		events := tr.Events()
		AssertEqual(t, 32+1, len(events))
		AssertEqual(t, "(truncated event count 17)", events[32].What)
	})

	t.Run("User is written once", func(t *testing.T) {
		t.Parallel()

		tr := fresh()
		AssertEqual(t, "", tr.User())
		AssertEqual(t, true, tr.SetUser("alice"))
		AssertEqual(t, false, tr.SetUser("bob"))
		AssertEqual(t, "alice", tr.User())
	})

	t.Run("Empty user is still a write", func(t *testing.T) {
		t.Parallel()

		tr := fresh()
		AssertEqual(t, true, tr.SetUser(""))
		AssertEqual(t, false, tr.SetUser("late"))
		AssertEqual(t, "", tr.User())
	})

	t.Run("Finish prevents SetUser", func(t *testing.T) {
		t.Parallel()

		tr := fresh()
		tr.Finish()
		AssertEqual(t, false, tr.SetUser("alice"))
		AssertEqual(t, "", tr.User())
	})

	t.Run("Concurrent use", func(t *testing.T) {
		t.Parallel()

		const workers = 100
		tr := fresh()

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				switch r := rand.Float64(); {
				case r < 0.05:
					tr.Errorf("event %d", i)
				case r < 0.10:
					tr.LazyErrorf("event %d", i)
				case r < 0.75:
					tr.Tracef("event %d", i)
				default:
					tr.LazyTracef("event %d", i)
				}
				tr.SetUser("worker")
				_, _, _ = tr.ID(), tr.Source(), tr.Category()
				_, _, _ = tr.Started(), tr.Finished(), tr.Errored()
				_, _, _ = tr.Duration(), tr.Events(), tr.User()
			}(i)
		}
		wg.Wait()
		tr.Finish()

		AssertEqual(t, workers, len(tr.Events()))
		AssertEqual(t, "worker", tr.User())
	})
}

func TestCoreTrace(t *testing.T) {
	testTrace(t, func(ctx context.Context, source, category string) (context.Context, trc.Trace) {
		return trc.New(ctx, source, category)
	})
}

func TestDecoratedTrace(t *testing.T) {
	testTrace(t, func(ctx context.Context, source, category string) (context.Context, trc.Trace) {
		return trc.New(ctx, source, category, trc.LogDecorator(io.Discard))
	})
}

func TestCollectorTrace(t *testing.T) {
	c := trc.NewDefaultCollector()
	testTrace(t, func(ctx context.Context, source, category string) (context.Context, trc.Trace) {
		return c.NewTrace(ctx, category)
	})
}

func TestTruncatedEvents(t *testing.T) {
	t.Parallel()

	_, tr := trc.New(context.Background(), "src", "foo")
	trc.SetMaxEvents(tr, 10)
	for i := 0; i < 15; i++ {
		tr.Tracef("event %d", i)
	}
	tr.Finish()

	events := tr.Events()
	AssertEqual(t, 11, len(events))
	AssertEqual(t, "(truncated event count 5)", events[10].What)
}

func TestSetMaxEventsUnwraps(t *testing.T) {
	t.Parallel()

	ctx, tr := trc.NewDefaultCollector().NewTrace(context.Background(), "wrapped")
	_, prefixed := trc.Prefix(ctx, "prefix")

	_, ok := trc.SetMaxEvents(prefixed, 10)
	AssertEqual(t, true, ok)
	for i := 0; i < 50; i++ {
		prefixed.Tracef("event %d", i)
	}
	AssertEqual(t, 11, len(tr.Events()))

	_, ok = trc.SetMaxEvents(trc.NewStaticTrace(tr, -1), 10)
	AssertEqual(t, false, ok)
}

func TestTraceContext(t *testing.T) {
	t.Parallel()

	if _, ok := trc.MaybeGet(context.Background()); ok {
		t.Fatalf("MaybeGet returned a trace from an empty context")
	}

	orphan := trc.Get(context.Background())
	AssertEqual(t, "(orphan)", orphan.Category())

	ctx, outer := trc.New(context.Background(), "src", "outer")
	have, ok := trc.MaybeGet(ctx)
	AssertEqual(t, true, ok)
	AssertEqual(t, outer.ID(), have.ID())

	func(ctx context.Context) {
		ctx, inner := trc.New(ctx, "src", "inner")
		if inner.ID() == outer.ID() {
			t.Errorf("inner trace has the outer ID")
		}
		AssertEqual(t, inner.ID(), trc.Get(ctx).ID())
	}(ctx)

	AssertEqual(t, outer.ID(), trc.Get(ctx).ID())
}
