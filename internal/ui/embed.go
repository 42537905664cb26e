// Package ui embeds the default public and admin pages served when no
// static directory is configured.
package ui

import (
	"embed"
	"io/fs"
)

//go:embed all:dist
var dist embed.FS

// FS returns the embedded site rooted at dist/.
func FS() fs.FS {
	sub, err := fs.Sub(dist, "dist")
	if err != nil {
		// dist is embedded at build time; Sub only fails on an invalid path.
		panic(err)
	}
	return sub
}
