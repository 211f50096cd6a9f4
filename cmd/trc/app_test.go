package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sessiontrace/trc"
	"github.com/sessiontrace/trc/trcprincipal"
	"github.com/sessiontrace/trc/trcsession"
	"github.com/sessiontrace/trc/trcuser"
)

type appFixture struct {
	t         *testing.T
	handler   http.Handler
	collector *trc.Collector
	cookies   []*http.Cookie
}

func newAppFixture(t *testing.T, store trcsession.Store, policy string) *appFixture {
	t.Helper()

	principals, err := trcprincipal.NewJWTSource(trcprincipal.JWTConfig{Key: []byte("test key"), Issuer: "trc"})
	require.NoError(t, err)

	collector := trc.NewDefaultCollector()

	return &appFixture{
		t:         t,
		collector: collector,
		handler: newApp(appConfig{
			Collector:  collector,
			Policy:     trcuser.ParsePolicy(policy),
			Store:      store,
			Principals: principals,
			Registry:   prometheus.NewRegistry(),
			Logger:     zap.NewNop(),
		}),
	}
}

func (f *appFixture) do(method, path string, form url.Values, token string) *httptest.ResponseRecorder {
	f.t.Helper()

	r := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	if form != nil {
		r.Header.Set("content-type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		r.Header.Set("authorization", "Bearer "+token)
	}
	for _, c := range f.cookies {
		r.AddCookie(c)
	}

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, r)

	if cookies := w.Result().Cookies(); len(cookies) > 0 {
		f.cookies = cookies
	}

	return w
}

func (f *appFixture) lastUser(category string) string {
	f.t.Helper()

	res, err := f.collector.Search(context.Background(), &trc.SearchRequest{
		Filter: trc.Filter{Category: category},
		Limit:  1,
	})
	require.NoError(f.t, err)
	require.Len(f.t, res.Traces, 1)
	return res.Traces[0].User()
}

func testApp(t *testing.T, store trcsession.Store) {
	f := newAppFixture(t, store, "login.name")

	w := f.do("GET", "/app/whoami", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "", f.lastUser("GET /app/whoami"))

	w = f.do("POST", "/app/login", url.Values{"name": {"alice"}}, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", f.lastUser("POST /app/login"))
	require.NotEmpty(t, f.cookies)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&login))
	require.NotEmpty(t, login.Token)

	// The session is read when the request completes.
	w = f.do("GET", "/app/session/login", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", f.lastUser("GET /app/session/:name"))

	// The authenticated principal takes precedence over the session.
	w = f.do("PUT", "/app/session/login", url.Values{"value": {"not a map"}}, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do("GET", "/app/whoami", nil, login.Token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"name":"alice"}`, w.Body.String())
	assert.Equal(t, "alice", f.lastUser("GET /app/whoami"))

	// A removed attribute resolves to nothing.
	w = f.do("DELETE", "/app/session/login", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "", f.lastUser("DELETE /app/session/:name"))

	w = f.do("POST", "/app/logout", nil, "")
	assert.Equal(t, http.StatusNoContent, w.Code)

	res, err := f.collector.Search(context.Background(), &trc.SearchRequest{Filter: trc.Filter{User: "alice"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res.MatchCount)

	w = f.do("GET", "/traces?user=alice", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"match_count": 3`)

	w = f.do("GET", "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "trc_http_user_resolutions_total")
}

func TestAppMemoryStore(t *testing.T) {
	t.Parallel()

	testApp(t, trcsession.NewMemoryStore())
}

func TestAppRedisStore(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store, err := trcsession.NewRedisStore(trcsession.RedisStoreConfig{Client: client})
	require.NoError(t, err)

	testApp(t, store)
}

func TestAppSessionID(t *testing.T) {
	t.Parallel()

	store := trcsession.NewMemoryStore()
	f := newAppFixture(t, store, "::id")

	w := f.do("GET", "/app/whoami", nil, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "", f.lastUser("GET /app/whoami"))
	assert.Equal(t, 0, store.Len())

	w = f.do("PUT", "/app/session/color", url.Values{"value": {"blue"}}, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	require.Len(t, f.cookies, 1)
	assert.Equal(t, f.cookies[0].Value, f.lastUser("PUT /app/session/:name"))
}

func TestLoginRequiresName(t *testing.T) {
	t.Parallel()

	f := newAppFixture(t, trcsession.NewMemoryStore(), "login.name")

	w := f.do("POST", "/app/login", url.Values{}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	res, err := f.collector.Search(context.Background(), &trc.SearchRequest{Filter: trc.Filter{IsErrored: true}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.MatchCount)
}
