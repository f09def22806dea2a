// Package ws streams session lifecycle events to presentation clients over
// websockets.
//
// The Hub is subscribed to the session's dispatcher. Each client gets a
// buffered queue drained by its own writer goroutine; clients may send
// {"type":"ping"} and receive {"type":"pong"}.
package ws
