package server

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"
)

// mountStatic раздает index.html и каталог static, если он существует
func (s *Server) mountStatic(r chi.Router) {
	if s.StaticDir == "" {
		return
	}
	if info, err := os.Stat(s.StaticDir); err != nil || !info.IsDir() {
		s.Logger.Warn("static directory not found, frontend disabled", "dir", s.StaticDir)
		return
	}

	index := filepath.Join(s.StaticDir, "index.html")
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		http.ServeFile(w, req, index)
	})
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(s.StaticDir))))
}
