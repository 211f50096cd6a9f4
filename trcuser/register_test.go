package trcuser_test

import (
	"testing"

	"github.com/sessiontrace/trc/trcuser"
)

func TestRegister(t *testing.T) {
	t.Parallel()

	var r trcuser.Register

	if _, ok := r.Value(); ok {
		t.Fatalf("new register should be unset")
	}

	for _, step := range []struct {
		op      string
		value   string
		changed bool
		want    string
	}{
		{"store", "", false, ""},
		{"store", "v1", true, "v1"},
		{"store", "", false, "v1"},
		{"store", "v1", false, "v1"},
		{"store-if-unset", "other", false, "v1"},
		{"store", "v2", true, "v2"},
	} {
		var changed bool
		switch step.op {
		case "store":
			changed = r.Store(step.value)
		case "store-if-unset":
			changed = r.StoreIfUnset(step.value)
		}
		if want, have := step.changed, changed; want != have {
			t.Errorf("%s(%q): changed: want %v, have %v", step.op, step.value, want, have)
		}
		if want, have := step.want, mustValue(r); want != have {
			t.Errorf("%s(%q): want %q, have %q", step.op, step.value, want, have)
		}
	}

	r.Reset()
	if _, ok := r.Value(); ok {
		t.Errorf("register should be unset after Reset")
	}
	if !r.StoreIfUnset("fresh") {
		t.Errorf("StoreIfUnset after Reset should succeed")
	}
}

func mustValue(r trcuser.Register) string {
	v, _ := r.Value()
	return v
}
