package trchttp

import (
	"encoding/json"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// headerHasMediaType reports whether the named header of the request lists any
// of the given media types. Parameters and wildcards are ignored.
func headerHasMediaType(r *http.Request, header string, mediaTypes ...string) bool {
	for _, elem := range strings.Split(r.Header.Get(header), ",") {
		have, _, err := mime.ParseMediaType(elem)
		if err != nil {
			continue
		}
		for _, want := range mediaTypes {
			if have == want {
				return true
			}
		}
	}
	return false
}

func isJSONRequest(r *http.Request) bool {
	return headerHasMediaType(r, "content-type", "application/json")
}

func acceptsEventStream(r *http.Request) bool {
	return headerHasMediaType(r, "accept", "text/event-stream")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("content-type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.Encode(v)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

// queryValue parses the value with parse, returning def if it's missing or
// invalid.
func queryValue[T any](s string, parse func(string) (T, error), def T) T {
	v, err := parse(s)
	if err != nil {
		return def
	}
	return v
}

// queryInt is like queryValue for ints, and clamps the result to [lo, hi].
func queryInt(s string, lo, def, hi int) int {
	return min(max(queryValue(s, strconv.Atoi, def), lo), hi)
}

func parseMinDuration(s string) (*time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
