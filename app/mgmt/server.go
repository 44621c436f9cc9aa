// Package mgmt provides the management server: a side listener exposing
// Prometheus metrics, the registered-plugin list, and pprof, kept off the
// main dispatch listener the way app/mgmt does in the teacher repo.
package mgmt

import (
	"context"
	"net/http"
	"net/http/pprof"
	"time"

	log "github.com/go-pkgz/lgr"
	"github.com/go-pkgz/rest"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/umputun/valor/app/registry"
)

// Server is the management listener: /metrics, /routes, /debug/pprof/*.
type Server struct {
	Listen   string
	Registry *registry.Registry
	Version  string
	Metrics  *Metrics
}

// Run starts the management router and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	log.Printf("[INFO] start management server on %s", s.Listen)

	mux := http.NewServeMux()
	mux.HandleFunc("/routes", s.routesCtrl())
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	h := rest.Wrap(mux,
		rest.Recoverer(log.Default()),
		rest.AppInfo("valor-mgmt", "umputun", s.Version),
		rest.Ping,
	)

	httpServer := http.Server{
		Addr:              s.Listen,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		if err := httpServer.Shutdown(context.Background()); err != nil {
			log.Printf("[WARN] mgmt server shutdown, %v", err)
		}
	}()

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// routesCtrl is GET /routes, the registered-plugin listing used by
// operators; the same information the registry builtin plugin serves over
// the main listener at _plugins, duplicated here so it's reachable even
// when the registry plugin isn't mounted.
func (s *Server) routesCtrl() func(w http.ResponseWriter, r *http.Request) {
	type resp struct {
		Name   string `json:"name"`
		Prefix string `json:"prefix"`
		Kind   string `json:"type"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		descs := s.Registry.List()
		res := make([]resp, 0, len(descs))
		for _, d := range descs {
			res = append(res, resp{Name: d.Name, Prefix: d.EffectivePrefix(), Kind: string(d.Kind)})
		}
		rest.RenderJSON(w, res)
	}
}
