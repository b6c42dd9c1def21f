package web

import (
	"embed"
	"html/template"
	"log"
	"net/http"
)

//go:embed templates/*
var templates embed.FS

// PageData is rendered into the dashboard page
type PageData struct {
	UpstreamURL    string
	SnapshotFile   string
	Heroes         []string
	Gamemodes      []string
	Platforms      []string
	HistoryEnabled bool
}

// Index serves the single-page dashboard
func Index(data PageData) http.HandlerFunc {
	tmpl := template.Must(template.ParseFS(templates, "templates/index.html"))

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := tmpl.Execute(w, data); err != nil {
			log.Printf("Error rendering index: %v", err)
		}
	}
}
