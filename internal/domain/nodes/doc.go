// Package nodes holds the registry of node types shared by all scripts of a
// session. Node types are referenced by identifier; the registry is a set,
// so repeated registration from different plugins is harmless.
package nodes
