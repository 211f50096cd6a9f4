package trchttp_test

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"testing"

	"github.com/sessiontrace/trc"
	"github.com/sessiontrace/trc/trchttp"
)

func TestDefaultClientUnixSocket(t *testing.T) {
	t.Parallel()

	var (
		ctx       = context.Background()
		collector = trc.NewDefaultCollector()
		sockpath  = filepath.Join(t.TempDir(), "trc.sock")
	)

	ln, err := net.Listen("unix", sockpath)
	if err != nil {
		t.Skipf("unix sockets not available: %v", err)
	}

	server := &http.Server{Handler: trchttp.NewServer(collector)}
	go server.Serve(ln)
	defer server.Close()

	populate(ctx, collector)

	client := trchttp.NewDefaultClient("http+unix://" + sockpath + ":/")
	res, err := client.Search(ctx, &trc.SearchRequest{Filter: trc.Filter{User: "bob"}})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if want, have := 1, res.MatchCount; want != have {
		t.Errorf("matched: want %d, have %d", want, have)
	}
}

func TestClientRemoteError(t *testing.T) {
	t.Parallel()

	client := trchttp.NewClient(http.DefaultClient, "127.0.0.1:1")
	if _, err := client.Search(context.Background(), &trc.SearchRequest{}); err == nil {
		t.Errorf("want error, have none")
	}
}
