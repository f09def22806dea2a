/*
Package monitoring provides Prometheus metrics for the session backend.

# Overview

Metrics track the session's collections (scripts, node types, addons), the
load and save protocols, and the bridge that carries notifications to the
presentation layer.

# Usage

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)
	sess, err := session.New(session.WithMetrics(metrics))

A nil *Metrics is accepted everywhere and records nothing.

# Metrics Endpoint

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
