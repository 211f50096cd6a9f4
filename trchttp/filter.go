package trchttp

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/sessiontrace/trc"
)

// parseFilter reads a filter from the URL query parameters of the request.
func parseFilter(r *http.Request) trc.Filter {
	urlquery := r.URL.Query()
	return trc.Filter{
		Sources:     urlquery["source"],
		IDs:         urlquery["id"],
		Category:    urlquery.Get("category"),
		User:        urlquery.Get("user"),
		HasUser:     urlquery.Has("has_user"),
		IsActive:    urlquery.Has("active"),
		IsFinished:  urlquery.Has("finished"),
		MinDuration: queryValue(urlquery.Get("min"), parseMinDuration, nil),
		IsSuccess:   urlquery.Has("success"),
		IsErrored:   urlquery.Has("errored"),
		Query:       urlquery.Get("q"),
	}
}

// encodeFilter is the inverse of parseFilter.
func encodeFilter(f trc.Filter, urlquery url.Values) {
	for _, source := range f.Sources {
		urlquery.Add("source", source)
	}
	for _, id := range f.IDs {
		urlquery.Add("id", id)
	}
	if f.Category != "" {
		urlquery.Set("category", f.Category)
	}
	if f.User != "" {
		urlquery.Set("user", f.User)
	}
	if f.HasUser {
		urlquery.Set("has_user", "true")
	}
	if f.IsActive {
		urlquery.Set("active", "true")
	}
	if f.IsFinished {
		urlquery.Set("finished", "true")
	}
	if f.MinDuration != nil {
		urlquery.Set("min", f.MinDuration.String())
	}
	if f.IsSuccess {
		urlquery.Set("success", "true")
	}
	if f.IsErrored {
		urlquery.Set("errored", "true")
	}
	if f.Query != "" {
		urlquery.Set("q", f.Query)
	}
}

// parseSearchRequest reads a search request from the URL query parameters of
// the request.
func parseSearchRequest(r *http.Request) *trc.SearchRequest {
	urlquery := r.URL.Query()
	return &trc.SearchRequest{
		Filter:     parseFilter(r),
		Limit:      queryInt(urlquery.Get("n"), trc.SearchLimitMin, trc.SearchLimitDefault, trc.SearchLimitMax),
		StackDepth: queryValue(urlquery.Get("stack_depth"), strconv.Atoi, 0),
	}
}

// encodeSearchRequest is the inverse of parseSearchRequest.
func encodeSearchRequest(req *trc.SearchRequest, urlquery url.Values) {
	encodeFilter(req.Filter, urlquery)
	if req.Limit > 0 {
		urlquery.Set("n", strconv.Itoa(req.Limit))
	}
	if req.StackDepth != 0 {
		urlquery.Set("stack_depth", strconv.Itoa(req.StackDepth))
	}
}
