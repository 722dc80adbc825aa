package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/breakscan/internal/domain"
	"github.com/vadiminshakov/breakscan/internal/services/universe"
)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Reports == nil {
		http.Error(w, "report feed not available", http.StatusServiceUnavailable)
		return
	}

	latest := s.Reports.Latest()
	if latest == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, newReportView(latest))
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Scanner == nil {
		http.Error(w, "scanner not available", http.StatusServiceUnavailable)
		return
	}

	req, err := s.scanRequest(r)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	report, err := s.Scanner.Scan(r.Context(), req)
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, domain.ErrConfiguration) {
			status = http.StatusBadRequest
		}
		s.logger.Warn("scan request failed", zap.String("index", req.Index), zap.Error(err))
		s.writeError(w, status, err)
		return
	}

	s.writeJSON(w, http.StatusOK, newReportView(report))
}

// scanRequest reads the index, tickers and rules form values; empty values fall back to Defaults.
func (s *Server) scanRequest(r *http.Request) (domain.ScanRequest, error) {
	if err := r.ParseForm(); err != nil {
		return domain.ScanRequest{}, errors.Wrap(domain.ErrConfiguration, err.Error())
	}

	req := s.Defaults
	if index := strings.ToLower(strings.TrimSpace(r.FormValue("index"))); index != "" {
		req.Index = index
		req.Tickers = nil
	}

	if raw := r.FormValue("tickers"); strings.TrimSpace(raw) != "" {
		tickers, err := universe.ParseCustom(raw)
		if err != nil {
			return domain.ScanRequest{}, err
		}
		req.Index = universe.IndexCustom
		req.Tickers = tickers
	}

	if names := r.Form["rules"]; strings.TrimSpace(strings.Join(names, "")) != "" {
		parsed, err := domain.ParseRuleNames(names)
		if err != nil {
			return domain.ScanRequest{}, err
		}
		req.Rules = parsed
	}

	return req, nil
}

func (s *Server) handleReportStream(w http.ResponseWriter, r *http.Request) {
	if s.Reports == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "report feed not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	reports := s.Reports.Subscribe()
	defer s.Reports.Unsubscribe(reports)

	// send a comment heartbeat every 20s so proxies keep connection
	heartbeat := time.NewTicker(20 * time.Second)
	defer heartbeat.Stop()

	lastID := strings.TrimSpace(r.Header.Get("Last-Event-ID"))
	send := func(report *domain.Report) error {
		id := report.ID.String()
		if id == lastID {
			return nil
		}
		payload, err := json.Marshal(newReportView(report))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "id: %s\n", id)
		fmt.Fprintf(w, "event: report\n")
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
		lastID = id
		return nil
	}

	if latest := s.Reports.Latest(); latest != nil {
		if err := send(latest); err != nil {
			s.logger.Error("report stream initial load", zap.Error(err))
			return
		}
	} else {
		// lets the page leave its loading state before the first scan finishes
		fmt.Fprintf(w, "event: no_data\n")
		fmt.Fprintf(w, "data: {}\n\n")
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case report, ok := <-reports:
			if !ok {
				return
			}
			if err := send(report); err != nil {
				s.logger.Warn("report stream send", zap.Error(err))
			}
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
