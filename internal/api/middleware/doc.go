// Package middleware holds the gin middleware of the editor API.
//
// CORS lets a browser-based editor on another origin call the API.
// RateLimit is a per-IP token bucket whose idle clients are dropped after
// IdleTTL. RequestID tags each request with X-Request-ID, and Logger writes
// one structured line per request including that ID.
//
//	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
//	router.Use(middleware.RateLimit(middleware.DefaultRateLimitConfig()))
package middleware
