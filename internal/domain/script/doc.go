// Package script defines the script contract the session depends on, a
// default Document implementation, and the ordered Registry that enforces
// unique, non-empty titles.
//
// A Document's persisted config looks like:
//
//	{
//	  "title": "Main",
//	  "flow": {"nodes": [{"identifier": "math.add", ...}], "size": [800, 600]},
//	  "logs": ["global", "errors"]
//	}
//
// Unknown keys at any level are preserved across load and save.
package script
