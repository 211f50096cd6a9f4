package trcutil_test

import (
	"errors"
	"testing"
	"time"

	"github.com/sessiontrace/trc/internal/trcutil"
)

func TestHumanizeDuration(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		in   time.Duration
		want string
	}{
		{0, "0s"},
		{1234 * time.Nanosecond, "1µs"},
		{1234567 * time.Nanosecond, "1.2ms"},
		{12345678 * time.Nanosecond, "12ms"},
		{1234567890 * time.Nanosecond, "1.2s"},
		{90 * time.Second, "1m30s"},
		{2*time.Hour + 3*time.Minute + 4*time.Second, "2h3m"},
	} {
		if want, have := tc.want, trcutil.HumanizeDuration(tc.in); want != have {
			t.Errorf("%s: want %q, have %q", tc.in, want, have)
		}
	}
}

func TestHumanizeBytes(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		in   int
		want string
	}{
		{0, "0.0B"},
		{15, "15.0B"},
		{2048, "2.0KB"},
		{500 * 1024, "500KB"},
		{3 * 1024 * 1024, "3.0MB"},
		{200 * 1024 * 1024, "200MB"},
	} {
		if want, have := tc.want, trcutil.HumanizeBytes(tc.in); want != have {
			t.Errorf("%d: want %q, have %q", tc.in, want, have)
		}
	}
}

func TestJoinErrors(t *testing.T) {
	t.Parallel()

	if want, have := "a; b", trcutil.JoinErrors(errors.New("a"), nil, errors.New("b")); want != have {
		t.Errorf("want %q, have %q", want, have)
	}
	if have := trcutil.FlattenErrors(); have != nil {
		t.Errorf("want nil, have %v", have)
	}
}
