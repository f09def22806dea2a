// Package main is the entry point for the nodeflow session server.
//
// The server hosts one editing session and exposes it over HTTP:
//
//	Client → REST (scripts, node types, projects) → Session owner
//	       ← WebSocket /stream ← Bridge ← script lifecycle events
//
// Configuration:
//   - Environment variables (12-factor), optionally from a .env file
//   - CLI flags (override env vars)
//
// Usage:
//
//	./server -port 8000 -project demo
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
