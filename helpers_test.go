package trc_test

import (
	"context"
	"strings"
	"testing"

	"github.com/sessiontrace/trc"
)

func TestRegion(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctx, tr := trc.New(ctx, "src", "foo")
	tr.Tracef("before x1")
	{
		_, tr, finish := trc.Region(ctx, "region")
		tr.Tracef("within x2")
		finish()
	}
	tr.Tracef("after x3")
	tr.Finish()

	want := []string{
		"before x1",
		"→ region",
		"· within x2",
		"← region",
		"after x3",
	}

	if want, have := len(want), len(tr.Events()); want != have {
		t.Fatalf("events: want %d, have %d", want, have)
	}

	for i, ev := range tr.Events() {
		havestr := ev.What
		wantstr := want[i]
		if !strings.Contains(havestr, wantstr) {
			t.Errorf("event %d/%d: want %q, have %q", i+1, len(tr.Events()), wantstr, havestr)
		}
	}
}

func TestPrefix(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	ctx, tr := trc.New(ctx, "src", "foo")
	tr.Tracef("before x1")
	{
		_, tr := trc.Prefix(ctx, "prefix %d", 7)
		tr.Tracef("one %s", "two")
		tr.SetUser("prefixed-user")
	}
	tr.Tracef("after x2")
	tr.Finish()

	want := []string{
		"before x1",
		"prefix 7 one two",
		"after x2",
	}

	if want, have := len(want), len(tr.Events()); want != have {
		t.Fatalf("events: want %d, have %d", want, have)
	}

	for i, ev := range tr.Events() {
		if want, have := want[i], ev.What; want != have {
			t.Errorf("event %d/%d: want %q, have %q", i+1, len(tr.Events()), want, have)
		}
	}

	AssertEqual(t, "prefixed-user", tr.User())
}

func TestOrphan(t *testing.T) {
	t.Parallel()

	tr := trc.Get(context.Background())
	AssertEqual(t, "(orphan)", tr.Category())

	if _, ok := trc.MaybeGet(context.Background()); ok {
		t.Errorf("orphan trace should not be injected into the context")
	}
}
