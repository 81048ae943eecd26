package server

import (
	"net/http"
	"time"

	"github.com/user/streambench/internal/bench"
)

// StatsResponse is the JSON snapshot served at /api/v1/stats.
type StatsResponse struct {
	Stream        string      `json:"stream"`
	Subscription  string      `json:"subscription"`
	UptimeSeconds float64     `json:"uptime_seconds"`
	Appends       AppendStats `json:"appends"`
	Fetched       int64       `json:"fetched"`
	AckFailures   int64       `json:"ack_failures"`
	Rates         bench.Rates `json:"rates"`
}

// AppendStats splits append outcomes by callback result.
type AppendStats struct {
	Success int64 `json:"success"`
	Failed  int64 `json:"failed"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	c := s.bench.Counters()
	writeJSON(w, http.StatusOK, StatsResponse{
		Stream:        s.bench.Stream(),
		Subscription:  s.bench.Subscription(),
		UptimeSeconds: time.Since(s.started).Seconds(),
		Appends: AppendStats{
			Success: c.SuccessAppends.Load(),
			Failed:  c.FailedAppends.Load(),
		},
		Fetched:     c.Fetched.Load(),
		AckFailures: s.bench.AckFailures(),
		Rates:       s.bench.Rates(),
	})
}
