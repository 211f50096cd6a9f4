package trc_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/sessiontrace/trc"
)

func TestLogDecorator(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, tr := trc.New(context.Background(), "src", "foo", trc.LogDecorator(&buf))
	tr.Tracef("hello %s", "world")
	tr.Errorf("oops")
	tr.SetUser("alice")
	tr.SetUser("bob")
	tr.Finish()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{
		tr.ID() + " TRC hello world",
		tr.ID() + " ERR oops",
		tr.ID() + ` USR "alice"`,
	}
	AssertDeepEqual(t, want, lines)
}

type recordingPublisher struct {
	users []string
}

func (p *recordingPublisher) Publish(ctx context.Context, tr trc.Trace) {
	p.users = append(p.users, tr.User())
}

func TestPublishDecorator(t *testing.T) {
	t.Parallel()

	p := &recordingPublisher{}
	_, tr := trc.New(context.Background(), "src", "foo", trc.PublishDecorator(p))
	tr.Tracef("one")
	tr.SetUser("alice")
	tr.SetUser("ignored")
	tr.Finish()

	AssertDeepEqual(t, []string{"", "alice", "alice"}, p.users)
}
