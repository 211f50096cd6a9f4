package eztrc_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sessiontrace/trc"
	"github.com/sessiontrace/trc/eztrc"
	"github.com/sessiontrace/trc/trchttp"
	"github.com/sessiontrace/trc/trcsession"
	"github.com/sessiontrace/trc/trcuser"
)

func TestGet(t *testing.T) {
	ctx, tr := eztrc.Get(context.Background(), "first")
	ctx2, tr2 := eztrc.Get(ctx, "second")

	if want, have := tr.ID(), tr2.ID(); want != have {
		t.Errorf("Get should reuse the trace in the context: want %s, have %s", want, have)
	}
	if ctx != ctx2 {
		t.Errorf("Get should return the same context")
	}

	eztrc.Tracef(ctx, "hello %d", 1)
	eztrc.LazyErrorf(ctx, "oops")
	tr.Finish()

	events := tr.Events()
	if want, have := 3, len(events); want != have {
		t.Fatalf("events: want %d, have %d", want, have)
	}
	if want, have := "(+ second)", events[0].What; want != have {
		t.Errorf("want %q, have %q", want, have)
	}
	if !tr.Errored() {
		t.Errorf("trace should be errored")
	}
}

func TestMiddleware(t *testing.T) {
	manager := trcsession.NewManager(trcsession.ManagerConfig{Store: trcsession.NewMemoryStore()})
	middleware := eztrc.Middleware(trchttp.MiddlewareConfig{
		Resolver: trcuser.NewResolver(trcuser.ParsePolicy("login")),
		Sessions: manager,
	})
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eztrc.Tracef(r.Context(), "in handler")
		h, _ := trcsession.FromContext(r.Context())
		h.SetAttribute(r.Context(), "login", "eztrc-user")
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/eztrc", nil))

	res, err := eztrc.Collector().Search(context.Background(), &trc.SearchRequest{
		Filter: trc.Filter{Category: "/eztrc", User: "eztrc-user"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if want, have := 1, res.MatchCount; want != have {
		t.Errorf("matched: want %d, have %d", want, have)
	}
}

func TestHandler(t *testing.T) {
	w := httptest.NewRecorder()
	eztrc.Handler().ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	if want, have := http.StatusOK, w.Code; want != have {
		t.Errorf("code: want %d, have %d", want, have)
	}
}
