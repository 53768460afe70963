// Package web provides an HTTP status server for the drivestats daemon.
package web

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/sweeney/drivestats/internal/status"
	"github.com/sweeney/drivestats/internal/store"
)

// Lister lists persisted records. Satisfied by store.Store.
type Lister interface {
	List(ctx context.Context) ([]store.Entry, error)
}

// Server serves the status page over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	records    Lister
}

// New creates a Server that reads state from the given tracker. records may
// be nil, in which case /stats.json is not served.
func New(addr string, tracker *status.Tracker, records Lister) *Server {
	s := &Server{tracker: tracker, records: records}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	if records != nil {
		mux.HandleFunc("/stats.json", s.handleStats)
	}

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// StatsEntryJSON is one persisted record in /stats.json.
type StatsEntryJSON struct {
	Track   string            `json:"track"`
	Subject string            `json:"subject"`
	Updated string            `json:"updated,omitempty"`
	Record  status.RecordJSON `json:"record"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	entries, err := s.records.List(r.Context())
	if err != nil {
		log.Printf("web: list records: %v", err)
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}

	out := make([]StatsEntryJSON, 0, len(entries))
	for _, e := range entries {
		se := StatsEntryJSON{
			Track:   e.Key.Track,
			Subject: e.Key.Subject,
			Record:  status.NewRecordJSON(e.Record),
		}
		if !e.Updated.IsZero() {
			se.Updated = e.Updated.UTC().Format(time.RFC3339)
		}
		out = append(out, se)
	}

	w.Header().Set("Content-Type", "application/json")
	data, _ := json.MarshalIndent(out, "", "  ")
	w.Write(data)
}
