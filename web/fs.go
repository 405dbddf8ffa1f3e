package web

import (
	"embed"
	"io/fs"
)

//go:embed static
var staticFS embed.FS

// StaticFS holds the desk page (index.html, app.js, style.css) mounted at the root
var StaticFS fs.FS

func init() {
	var err error
	StaticFS, err = fs.Sub(staticFS, "static/dist")
	if err != nil {
		panic("failed to create static filesystem: " + err.Error())
	}
}

// GetStaticFS returns the filesystem the HTTP server serves "/" and "/static/" from
func GetStaticFS() fs.FS {
	return StaticFS
}

// SetStaticFS overrides the static filesystem, e.g. with os.DirFS("web/static/dist")
// while editing the page
func SetStaticFS(fsys fs.FS) {
	StaticFS = fsys
}
