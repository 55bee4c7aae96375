package server

import (
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/olivejs/ginger/internal/livereload"
)

type mount struct {
	prefix string
	dir    string
}

// staticHandler serves a file from the first mount that has it. HTML
// responses carry the live-reload client.
type staticHandler struct {
	mounts  []mount
	snippet []byte
}

func (h *staticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	p := path.Clean("/" + r.URL.Path)
	for _, m := range h.mounts {
		if !strings.HasPrefix(p, m.prefix) {
			continue
		}
		file := filepath.Join(m.dir, filepath.FromSlash(strings.TrimPrefix(p, m.prefix)))
		info, err := os.Stat(file)
		if err == nil && info.IsDir() {
			file = filepath.Join(file, "index.html")
			info, err = os.Stat(file)
		}
		if err != nil || info.IsDir() {
			continue
		}
		h.serveFile(w, r, file, info)
		return
	}
	http.NotFound(w, r)
}

func (h *staticHandler) serveFile(w http.ResponseWriter, r *http.Request, file string, info os.FileInfo) {
	w.Header().Set("Cache-Control", "no-cache")

	if filepath.Ext(file) == ".html" && h.snippet != nil {
		doc, err := os.ReadFile(file)
		if err != nil {
			http.Error(w, "Cannot read file", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.Method == http.MethodHead {
			return
		}
		_, _ = w.Write(livereload.Inject(doc, h.snippet))
		return
	}

	f, err := os.Open(file)
	if err != nil {
		http.Error(w, "Cannot read file", http.StatusInternalServerError)
		return
	}
	defer f.Close()
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
