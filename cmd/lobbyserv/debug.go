package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"

	"github.com/golang/glog"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	_ "golang.org/x/net/trace"

	"badc0de.net/pkg/go-lobby/metrics"
	"badc0de.net/pkg/go-lobby/secrets"
)

// glogWriter sends access log lines to glog.
type glogWriter struct{}

func (glogWriter) Write(b []byte) (int, error) {
	glog.V(1).Infof("debug web server: %s", b)
	return len(b), nil
}

// debugHandler serves the debug web server. Anything under /debug/ not
// handled here goes to http.DefaultServeMux, where x/net/trace registers
// /debug/requests and /debug/events.
func debugHandler(reg *prometheus.Registry, layouts secrets.KeyLayouts) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/debug/minimetrics", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, "runtime.NumGoroutine(): %d\n", runtime.NumGoroutine())
	})
	r.HandleFunc("/debug/keylayouts", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(layouts.Sorted()); err != nil {
			glog.Errorf("encoding key layouts: %s", err)
		}
	}).Methods("GET")
	r.Handle("/metrics", metrics.Handler(reg))
	r.PathPrefix("/debug/").Handler(http.DefaultServeMux)

	return handlers.LoggingHandler(glogWriter{}, r)
}
