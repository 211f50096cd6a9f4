// Package trchttp provides HTTP integration for traces: a middleware which
// creates a trace for each request and records the request's user in the
// trace header, and a server and clients for searching and streaming traces.
package trchttp
