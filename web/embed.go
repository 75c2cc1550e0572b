// Package web embeds the dashboard pages for serving from the Go binary.
//
// The static/ directory holds plain HTML pages that talk to the JSON
// API; they are embedded at compile-time using go:embed.
package web

import (
	"embed"
	"io/fs"
	"log"
)

//go:embed all:static
var pages embed.FS

// StaticFS returns a filesystem rooted at the embedded static/ directory.
func StaticFS() fs.FS {
	sub, err := fs.Sub(pages, "static")
	if err != nil {
		log.Fatalf("web.StaticFS: %v", err)
	}
	return sub
}

// ReadPage reads a single page from the embedded filesystem.
func ReadPage(fsys fs.FS, name string) ([]byte, error) {
	return fs.ReadFile(fsys, name)
}
