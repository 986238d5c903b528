// Package profiling runs an optional pprof sidecar server.
package profiling

import (
	"context"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof" // registers pprof handlers on the default mux
	"runtime"
	"time"

	"github.com/Ce1ectric/groundmeas/pkg/config"
)

// Profiler manages the pprof profiling server.
type Profiler struct {
	config *config.ServerConfig
	server *http.Server
}

// New creates a profiler for the given server configuration.
func New(cfg *config.ServerConfig) *Profiler {
	return &Profiler{config: cfg}
}

// Start starts the profiling server on a separate port. No-op when
// profiling is disabled.
func (p *Profiler) Start() error {
	if !p.config.EnableProfiling {
		return nil
	}

	runtime.SetBlockProfileRate(1)
	runtime.SetMutexProfileFraction(1)

	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", http.DefaultServeMux.ServeHTTP)
	mux.HandleFunc("/debug/info", infoHandler)

	p.server = &http.Server{
		Addr:    ":" + p.config.ProfilingPort,
		Handler: mux,
	}

	log.Printf("Starting profiling server on port %s", p.config.ProfilingPort)

	go func() {
		if err := p.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Profiling server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully stops the profiling server.
func (p *Profiler) Stop() error {
	if p.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("profiling server shutdown error: %w", err)
	}
	return nil
}

// infoHandler reports runtime memory and goroutine counters.
func infoHandler(w http.ResponseWriter, r *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{
  "timestamp": "%s",
  "goroutines": %d,
  "heap_alloc_mb": %.2f,
  "sys_mb": %.2f,
  "num_gc": %d
}`, time.Now().Format(time.RFC3339), runtime.NumGoroutine(), bToMb(m.HeapAlloc), bToMb(m.Sys), m.NumGC)
}

func bToMb(b uint64) float64 {
	return float64(b) / 1024 / 1024
}
