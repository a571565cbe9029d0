// Package web serves the built-in monitoring dashboard.
package web

import (
	_ "embed"
	"net/http"
)

//go:embed dashboard.html
var dashboardHTML []byte

// ServeDashboard serves the embedded dashboard page. The page connects back
// to the /ws endpoint and renders the live event stream; it carries no data
// of its own.
func ServeDashboard(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Write(dashboardHTML)
}
