package trchttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/peterbourgon/unixtransport"

	"github.com/sessiontrace/trc"
)

// HTTPClient models a concrete http.Client.
type HTTPClient interface {
	Do(*http.Request) (*http.Response, error)
}

// Client searches a remote [Server] over HTTP.
type Client struct {
	http HTTPClient
	uri  string
}

var _ trc.Searcher = (*Client)(nil)

// NewClient returns a client for the server at uri. URIs without a scheme are
// treated as plain HTTP.
func NewClient(client HTTPClient, uri string) *Client {
	if !strings.Contains(uri, "://") {
		uri = "http://" + uri
	}
	return &Client{http: client, uri: uri}
}

// NewDefaultClient is NewClient with [NewUnixHTTPClient], so uri may also be a
// Unix socket, e.g. http+unix:///path/to/socket:/traces.
func NewDefaultClient(uri string) *Client {
	return NewClient(NewUnixHTTPClient(), uri)
}

// NewUnixHTTPClient returns an HTTP client which can also dial Unix sockets.
func NewUnixHTTPClient() *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	unixtransport.Register(transport)
	return &http.Client{Transport: transport}
}

// Search implements [trc.Searcher].
func (c *Client) Search(ctx context.Context, req *trc.SearchRequest) (*trc.SearchResponse, error) {
	tr := trc.Get(ctx)

	r, err := c.newSearchRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	tr.LazyTracef("⇒ %s", r.URL)

	resp, err := c.http.Do(r)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = fmt.Errorf("%s: %w", urlErr.Op, urlErr.Err) // the URL is already in the trace
		}
		return nil, fmt.Errorf("execute HTTP request: %w", err)
	}
	defer func() {
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		var e errorResponse
		if json.NewDecoder(resp.Body).Decode(&e) == nil && e.Error != "" {
			return nil, fmt.Errorf("remote status code %d: %s", resp.StatusCode, e.Error)
		}
		return nil, fmt.Errorf("remote status code %d", resp.StatusCode)
	}

	var res trc.SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	tr.LazyTracef("⇐ total=%d matched=%d returned=%d users=%d", res.TotalCount, res.MatchCount, len(res.Traces), len(res.Users))

	return &res, nil
}

func (c *Client) newSearchRequest(ctx context.Context, req *trc.SearchRequest) (*http.Request, error) {
	r, err := http.NewRequestWithContext(ctx, "GET", c.uri, nil)
	if err != nil {
		return nil, fmt.Errorf("create HTTP request: %w", err)
	}

	query := r.URL.Query()
	encodeSearchRequest(req, query)
	r.URL.RawQuery = query.Encode()
	r.Header.Set("accept", "application/json")

	return r, nil
}
