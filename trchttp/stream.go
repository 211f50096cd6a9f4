package trchttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bernerdschaefer/eventsource"

	"github.com/sessiontrace/trc"
)

// StreamClient consumes the server-sent event stream of a [Server].
type StreamClient struct {
	// URI of the stream server. Required.
	URI string

	// SendBuffer requested from the server. Zero uses the server default, max
	// 100k.
	SendBuffer int

	// OnRead is called for every event received, including non-trace events.
	// It must not block, and must not modify the data.
	OnRead func(ctx context.Context, eventType string, eventData []byte)

	// RetryInterval between reconnects. Default 3s, min 1s, max 60s.
	RetryInterval time.Duration

	// StatsInterval requested from the server. Default 10s, min 1s, max 60s.
	StatsInterval time.Duration

	// HTTPClient used to connect. Default [NewUnixHTTPClient].
	HTTPClient HTTPClient
}

func clampDuration(d, def, min, max time.Duration) time.Duration {
	switch {
	case d == 0:
		return def
	case d < min:
		return min
	case d > max:
		return max
	default:
		return d
	}
}

// normalized returns a copy of the client with defaults applied.
func (c StreamClient) normalized() StreamClient {
	if c.URI != "" && !strings.Contains(c.URI, "://") {
		c.URI = "http://" + c.URI
	}
	c.SendBuffer = max(0, min(c.SendBuffer, 100000))
	if c.OnRead == nil {
		c.OnRead = func(context.Context, string, []byte) {}
	}
	c.RetryInterval = clampDuration(c.RetryInterval, 3*time.Second, time.Second, time.Minute)
	c.StatsInterval = clampDuration(c.StatsInterval, 10*time.Second, time.Second, time.Minute)
	if c.HTTPClient == nil {
		c.HTTPClient = NewUnixHTTPClient()
	}
	return c
}

// request builds the stream request for one connection attempt.
func (c StreamClient) request(ctx context.Context, f trc.Filter, lastEventID string) (*http.Request, error) {
	uri, err := url.Parse(c.URI)
	if err != nil {
		return nil, fmt.Errorf("parse URI: %w", err)
	}

	query := uri.Query()
	encodeFilter(f, query)
	if c.SendBuffer > 0 {
		query.Set("sendbuf", strconv.Itoa(c.SendBuffer))
	}
	query.Set("stats", c.StatsInterval.String())
	uri.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, "GET", uri.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("accept", "text/event-stream")
	req.Header.Set("cache-control", "no-cache")
	if lastEventID != "" {
		req.Header.Set("last-event-id", lastEventID)
	}
	return req, nil
}

// errRetry marks a connection failure which is worth retrying.
type errRetry struct{ err error }

func (e errRetry) Error() string { return e.err.Error() }
func (e errRetry) Unwrap() error { return e.err }

// Stream sends traces allowed by the filter to ch, until the context is
// canceled, which returns nil, or a non-recoverable error occurs. Dropped
// connections and 5xx responses are retried after the retry interval.
func (c *StreamClient) Stream(ctx context.Context, f trc.Filter, ch chan<- trc.Trace) (err error) {
	var (
		cfg    = c.normalized()
		tr     = trc.Get(ctx)
		lastID string
	)

	defer func() {
		if err != nil {
			tr.Errorf("stream: %v", err)
		}
	}()

	for {
		err := cfg.connect(ctx, f, ch, &lastID)
		switch {
		case ctx.Err() != nil:
			tr.LazyTracef("stream closed")
			return nil
		case err == nil:
			tr.LazyTracef("stream ended by server")
			return nil
		case !errors.As(err, &errRetry{}):
			return err
		}

		tr.LazyTracef("%v, reconnecting in %s", err, cfg.RetryInterval)

		select {
		case <-time.After(cfg.RetryInterval):
		case <-ctx.Done():
			tr.LazyTracef("stream closed")
			return nil
		}
	}
}

// connect makes one connection and reads events until it fails. Canceling the
// context closes the response body, which ends the read.
func (c StreamClient) connect(ctx context.Context, f trc.Filter, ch chan<- trc.Trace, lastID *string) error {
	req, err := c.request(ctx, f, *lastID)
	if err != nil {
		return err
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return errRetry{fmt.Errorf("connect: %w", err)}
	}
	defer resp.Body.Close()

	switch code := resp.StatusCode; {
	case code == http.StatusNoContent:
		return nil
	case code >= 500:
		return errRetry{fmt.Errorf("remote status code %d", code)}
	case code != http.StatusOK:
		return fmt.Errorf("remote status code %d", code)
	}

	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("content-type")); mediaType != "text/event-stream" {
		return fmt.Errorf("invalid content type %q", resp.Header.Get("content-type"))
	}

	dec := eventsource.NewDecoder(resp.Body)
	for {
		var ev eventsource.Event
		switch err := dec.Decode(&ev); {
		case errors.Is(err, eventsource.ErrInvalidEncoding):
			continue
		case err != nil:
			return errRetry{fmt.Errorf("read event: %w", err)}
		}

		if ev.ID != "" || ev.ResetID {
			*lastID = ev.ID
		}
		if len(ev.Data) == 0 {
			continue
		}

		c.OnRead(ctx, ev.Type, ev.Data)

		if err := c.dispatch(ctx, ev, ch); err != nil {
			return err
		}
	}
}

func (c StreamClient) dispatch(ctx context.Context, ev eventsource.Event, ch chan<- trc.Trace) error {
	tr := trc.Get(ctx)

	switch ev.Type {
	case "trace":
		var st trc.StaticTrace
		if err := json.Unmarshal(ev.Data, &st); err != nil {
			return fmt.Errorf("decode trace: %w", err)
		}
		select {
		case ch <- &st:
		case <-ctx.Done():
		}

	case "stats":
		var stats trc.StreamStats
		if err := json.Unmarshal(ev.Data, &stats); err != nil {
			return fmt.Errorf("decode stats: %w", err)
		}
		tr.LazyTracef("stats %s", stats)

	case "init":
		tr.LazyTracef("init %s", ev.Data)

	default:
		tr.LazyTracef("unknown event type %q", ev.Type)
	}

	return nil
}
