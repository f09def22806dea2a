// Package server assembles the embedding application: it builds the
// session with its store and addons, mounts the HTTP API and event stream,
// and runs the owner and bridge goroutines alongside the HTTP server.
package server
