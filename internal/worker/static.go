package worker

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/rs/zerolog/log"
)

//go:embed static/*
var staticFS embed.FS

// staticSubFS is the static subdirectory filesystem
var staticSubFS fs.FS

// staticInitErr stores any error from static filesystem initialization
var staticInitErr error

func init() {
	staticSubFS, staticInitErr = fs.Sub(staticFS, "static")
	if staticInitErr != nil {
		log.Warn().Err(staticInitErr).Msg("Static filesystem initialization failed - frontend will be unavailable")
	}
}

var assetContentTypes = map[string]string{
	".css":  "text/css; charset=utf-8",
	".js":   "text/javascript; charset=utf-8",
	".html": "text/html; charset=utf-8",
	".svg":  "image/svg+xml",
}

// serveIndex serves the search page.
func serveIndex(w http.ResponseWriter, r *http.Request) {
	if staticInitErr != nil {
		writeError(w, http.StatusServiceUnavailable, "frontend unavailable")
		return
	}
	content, err := fs.ReadFile(staticSubFS, "index.html")
	if err != nil {
		writeError(w, http.StatusNotFound, "frontend not found")
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(content)
}

// serveAsset serves /css/* and /js/* from the embedded filesystem.
func serveAsset(w http.ResponseWriter, r *http.Request) {
	if staticInitErr != nil {
		writeError(w, http.StatusServiceUnavailable, "assets unavailable")
		return
	}

	name := strings.TrimPrefix(path.Clean(r.URL.Path), "/")
	if !fs.ValidPath(name) || !(strings.HasPrefix(name, "css/") || strings.HasPrefix(name, "js/")) {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}
	content, err := fs.ReadFile(staticSubFS, name)
	if err != nil {
		writeError(w, http.StatusNotFound, "asset not found")
		return
	}

	if ct, ok := assetContentTypes[path.Ext(name)]; ok {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(content)
}
