// Package main implements projectctl, an offline tool for stored nodeflow
// projects. It validates files against the project schema, prints their
// canonical form and digest, and converts between JSON, YAML and TOML.
//
// Usage:
//
//	projectctl validate demo.yaml
//	projectctl digest demo.json
//	projectctl convert -to toml demo.json > demo.toml
package main
