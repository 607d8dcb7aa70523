// Package web serves the single-page UI.
package web

import (
	_ "embed"
	"fmt"
	"net/http"
)

//go:embed index.html
var indexHTML string

// Index serves the embedded page.
func Index() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, indexHTML)
	})
}
