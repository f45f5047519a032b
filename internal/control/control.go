// Package control is the minimal operator HTTP surface of §6:
// pause/resume/status per chain, plus read-only trade/queue/mirror
// snapshots. Routing follows the gorilla/mux + per-handler JSON-encode
// pattern of the pack's arbitrage-bot-be monitor service, generalized
// from a REST CRUD surface over token pairs/DEXes to a control surface
// over a fixed set of already-running per-chain pipelines.
package control

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/evmarb/searcher/internal/coordinator"
)

// Server exposes the operator HTTP surface over a fixed set of chains,
// keyed by chain ID.
type Server struct {
	chains map[uint64]*coordinator.Chain
	log    *zap.Logger
	router *mux.Router
}

func New(chains map[uint64]*coordinator.Chain, log *zap.Logger) *Server {
	s := &Server{chains: chains, log: log}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
	s.router.HandleFunc("/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/chains/{chainID}/pause", s.handlePause).Methods("POST")
	s.router.HandleFunc("/chains/{chainID}/resume", s.handleResume).Methods("POST")
	s.router.HandleFunc("/chains/{chainID}/trades", s.handleTrades).Methods("GET")
	s.router.HandleFunc("/chains/{chainID}/queue", s.handleQueue).Methods("GET")
	s.router.HandleFunc("/chains/{chainID}/mirror", s.handleMirror).Methods("GET")
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chainStatus struct {
	ChainID   uint64 `json:"chainId"`
	Paused    bool   `json:"paused"`
	QueueLen  int    `json:"queueLen"`
	PoolCount int    `json:"poolCount"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	out := make([]chainStatus, 0, len(s.chains))
	for id, c := range s.chains {
		out = append(out, chainStatus{
			ChainID:   id,
			Paused:    c.Executor.Paused(),
			QueueLen:  c.Pipeline.Len(),
			PoolCount: len(c.Mirror.All()),
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chainFromPath(w, r)
	if !ok {
		return
	}
	c.Executor.Pause()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": true})
}

func (s *Server) handleResume(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chainFromPath(w, r)
	if !ok {
		return
	}
	c.Executor.Resume()
	writeJSON(w, http.StatusOK, map[string]bool{"paused": false})
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chainFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Executor.History())
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chainFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Pipeline.Snapshot())
}

func (s *Server) handleMirror(w http.ResponseWriter, r *http.Request) {
	c, ok := s.chainFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Mirror.All())
}

func (s *Server) chainFromPath(w http.ResponseWriter, r *http.Request) (*coordinator.Chain, bool) {
	vars := mux.Vars(r)
	id, err := parseChainID(vars["chainID"])
	if err != nil {
		http.Error(w, "invalid chain id", http.StatusBadRequest)
		return nil, false
	}
	c, ok := s.chains[id]
	if !ok {
		http.Error(w, "unknown chain", http.StatusNotFound)
		return nil, false
	}
	return c, true
}

func parseChainID(raw string) (uint64, error) {
	return strconv.ParseUint(raw, 10, 64)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
