package trchttp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bernerdschaefer/eventsource"

	"github.com/sessiontrace/trc"
	"github.com/sessiontrace/trc/internal/trcutil"
)

const maxRequestBodySizeBytes = 1 * 1024 * 1024

// Server provides a JSON API over a [trc.Searcher]. If the searcher is also a
// [trc.Streamer], requests which accept text/event-stream are served a stream
// of matching traces as server-sent events.
type Server struct {
	searcher trc.Searcher
	streamer trc.Streamer
}

// NewServer returns a server wrapping the given searcher.
func NewServer(searcher trc.Searcher) *Server {
	streamer, _ := searcher.(trc.Streamer)
	return &Server{
		searcher: searcher,
		streamer: streamer,
	}
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if acceptsEventStream(r) {
		s.serveStream(w, r)
		return
	}
	s.serveSearch(w, r)
}

func (s *Server) serveSearch(w http.ResponseWriter, r *http.Request) {
	ctx, tr, finish := trc.Region(r.Context(), "trchttp.Server.serveSearch")
	defer finish()

	var req *trc.SearchRequest
	switch {
	case isJSONRequest(r):
		req = &trc.SearchRequest{}
		body := http.MaxBytesReader(w, r.Body, maxRequestBodySizeBytes)
		if err := json.NewDecoder(body).Decode(req); err != nil {
			tr.Errorf("decode search request: %v", err)
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode search request: %w", err))
			return
		}
	default:
		req = parseSearchRequest(r)
	}

	tr.LazyTracef("search request %s", req)

	res, err := s.searcher.Search(ctx, req)
	if err != nil {
		tr.Errorf("search: %v", err)
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	tr.LazyTracef("total=%d matched=%d returned=%d users=%d", res.TotalCount, res.MatchCount, len(res.Traces), len(res.Users))

	writeJSON(w, http.StatusOK, res)
}

func (s *Server) serveStream(w http.ResponseWriter, r *http.Request) {
	var (
		ctx = r.Context()
		tr  = trc.Get(ctx)
	)

	if s.streamer == nil {
		err := fmt.Errorf("streaming not supported")
		tr.Errorf("%v", err)
		writeError(w, http.StatusNotImplemented, err)
		return
	}

	f := parseFilter(r)
	if normalizeErrs := f.Normalize(); len(normalizeErrs) > 0 {
		err := fmt.Errorf("bad request: %s", trcutil.JoinErrors(normalizeErrs...))
		tr.Errorf("%v", err)
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var (
		statsInterval = queryValue(r.URL.Query().Get("stats"), time.ParseDuration, 10*time.Second)
		sendbuf       = queryInt(r.URL.Query().Get("sendbuf"), 0, 100, 100000)
		tracec        = make(chan trc.Trace, sendbuf)
		donec         = make(chan struct{})
	)

	if statsInterval < time.Second {
		statsInterval = time.Second
	}

	tr.LazyTracef("stream filter %s, stats interval %s, send buffer %d", f, statsInterval, sendbuf)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer close(donec)
		stats, err := s.streamer.Stream(ctx, f, tracec)
		tr.LazyTracef("stream done, %s, error=%v", stats, err)
	}()
	defer func() {
		cancel()
		<-donec
	}()

	eventsource.Handler(func(lastID string, encoder *eventsource.Encoder, stop <-chan bool) {
		trID := tr.ID()

		ticker := time.NewTicker(statsInterval)
		defer ticker.Stop()

		encode := func(eventType string, v any) bool {
			data, err := json.Marshal(v)
			if err != nil {
				tr.Errorf("JSON marshal %s: %v", eventType, err)
				return true
			}
			if err := encoder.Encode(eventsource.Event{Type: eventType, Data: data}); err != nil {
				tr.Errorf("encode %s: %v", eventType, err)
				return false
			}
			return true
		}

		if !encode("init", map[string]any{"filter": f, "sendbuf": cap(tracec)}) {
			return
		}

		for {
			select {
			case <-ticker.C:
				stats, err := s.streamer.StreamStats(ctx, tracec)
				if err != nil {
					tr.LazyTracef("get stats: %v", err)
					continue
				}
				if !encode("stats", stats) {
					return
				}

			case recv := <-tracec:
				if recv.ID() == trID {
					continue // don't publish our own trace events
				}
				if !encode("trace", recv) {
					return
				}

			case <-donec:
				tr.LazyTracef("stopping: stream done")
				return

			case <-stop:
				tr.LazyTracef("stopping: stop signal")
				return

			case <-ctx.Done():
				tr.LazyTracef("stopping: context done (%v)", ctx.Err())
				return
			}
		}
	}).ServeHTTP(w, r)
}
