package fixtures

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// OracleServer is an httptest classifier. Titles or process names listed in
// Distractions get DISTRACTION; everything else gets STUDY.
type OracleServer struct {
	*httptest.Server

	mu           sync.Mutex
	distractions map[string]bool
	requests     []domain.OracleRequest
	failing      bool
}

// NewOracleServer starts a server. Close it when done.
func NewOracleServer(distractions ...string) *OracleServer {
	s := &OracleServer{distractions: make(map[string]bool)}
	for _, d := range distractions {
		s.distractions[d] = true
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

func (s *OracleServer) handle(w http.ResponseWriter, r *http.Request) {
	var req domain.OracleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, req)
	failing := s.failing
	verdict := domain.VerdictStudy
	if s.distractions[req.WindowTitle] || s.distractions[req.ProcessName] {
		verdict = domain.VerdictDistraction
	}
	s.mu.Unlock()

	if failing {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(domain.OracleResponse{Verdict: string(verdict), Confidence: 0.9})
}

// SetFailing makes every following request return 503.
func (s *OracleServer) SetFailing(failing bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failing = failing
}

// Requests returns a copy of every request received.
func (s *OracleServer) Requests() []domain.OracleRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OracleRequest(nil), s.requests...)
}

// RequestsFor counts requests for one window title.
func (s *OracleServer) RequestsFor(windowTitle string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.WindowTitle == windowTitle {
			n++
		}
	}
	return n
}
