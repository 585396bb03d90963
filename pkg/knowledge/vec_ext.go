//go:build sqlite_vec && cgo

// This file only compiles when built with -tags sqlite_vec against a
// cgo-enabled toolchain. sqlite-vec's auto-extension hook attaches through
// SQLite's C API, which the pure-Go modernc.org/sqlite driver used by
// store.go does not consult, so the registration has no effect on queries:
// retrieval uses the brute-force cosine scoring in knowledge.go with or
// without the tag.
package knowledge

import (
	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

func init() {
	vec.Auto()
}
