// Package variables is a built-in addon holding named values at session
// level. Nodes in any script can read and write them, and they are saved
// with the project.
package variables
