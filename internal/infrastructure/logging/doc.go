// Package logging wraps uber/zap for the session server.
//
// Production builds write JSON, development builds write coloured console
// lines. Each component takes a named child (session, bridge, http, ws)
// and logs with typed fields:
//
//	logger, _ := logging.New(logging.Config{Level: "debug"})
//	log := logger.Named("session").With(zap.String("session_id", id))
//	log.Warn("Addon restore failed", zap.String("addon", name), zap.Error(err))
//
// Tests use NewNop or a zaptest observer core.
package logging
