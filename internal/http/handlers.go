package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"txview/internal/core"
	"txview/internal/diagnostics"
	"txview/internal/log"
	"txview/internal/store"
	"txview/internal/view"
)

// tableData feeds the transactions_table template.
type tableData struct {
	SearchTerm   string
	Transactions []core.Transaction
	Total        int
	Loaded       bool
}

type pageData struct {
	Title string
	Today string
	Table tableData
}

func newTableData(snap view.Snapshot) tableData {
	return tableData{
		SearchTerm:   snap.SearchTerm,
		Transactions: snap.Filtered,
		Total:        len(snap.Transactions),
		Loaded:       snap.Loaded,
	}
}

// handleIndex renders the full page, loading the collection for the
// session's current term (or ?q= when given).
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	_, v := s.sessions.Resolve(w, r)

	term := v.SearchTerm()
	if r.URL.Query().Has("q") {
		var err error
		if term, err = ParseSearchTerm(r.URL.Query()); err != nil {
			BadRequestError(err.Error()).Write(w)
			return
		}
	}
	// Failures are reported by the view; the page renders prior state.
	_ = v.Load(r.Context(), term)

	s.render(w, r, NewHTMXResponse(), "index.html", pageData{
		Title: "Transactions",
		Today: time.Now().Format("2006-01-02"),
		Table: newTableData(v.Snapshot()),
	})
}

// handleTransactionsTable reloads with the search term and renders the table.
func (s *Server) handleTransactionsTable(w http.ResponseWriter, r *http.Request) {
	_, v := s.sessions.Resolve(w, r)

	term, err := ParseSearchTerm(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	err = v.Load(r.Context(), term)
	if errors.Is(err, view.ErrSuperseded) || errors.Is(err, view.ErrClosed) {
		// A newer request owns the swap.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	s.renderTable(w, r, NewHTMXResponse(), v)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	_, v := s.sessions.Resolve(w, r)

	nt, err := ParseTransactionForm(r)
	if err != nil {
		var fe *FieldError
		if errors.As(err, &fe) {
			UnprocessableEntityError(fe.Error()).Write(w)
			return
		}
		BadRequestError("Invalid request format").Write(w)
		return
	}

	resp := NewHTMXResponse()
	created, err := v.AddTransaction(r.Context(), nt)
	if err == nil {
		resp.TriggerTransactionCreated(created.ID.String()).
			TriggerFormReset().
			TriggerSuccessNotification("Transaction added")
	}
	s.renderTable(w, r, resp, v)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	_, v := s.sessions.Resolve(w, r)

	id, err := core.ParseID(r.PathValue("id"))
	if err != nil {
		BadRequestError("Missing transaction id").Write(w)
		return
	}

	resp := NewHTMXResponse()
	if err := v.DeleteTransaction(r.Context(), id); err == nil {
		resp.TriggerTransactionDeleted(id.String())
	}
	s.renderTable(w, r, resp, v)
}

func (s *Server) renderTable(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, v *view.TransactionList) {
	s.render(w, r, resp, "transactions_table.html", newTableData(v.Snapshot()))
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, name string, data any) {
	if s.templates == nil {
		InternalServerError("Templates not loaded").Write(w)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template render failed",
			"template", name,
			log.FieldError, err.Error())
		InternalServerError("Render failed").Write(w)
		return
	}
	resp.BodyHTML(buf.String()).Write(w)
}

// handleHealth performs a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleReady checks that templates parsed and the store answers a list.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if s.store == nil {
		checks["store"] = "not_configured"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else if _, err := s.store.List(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	if s.sessions != nil {
		checks["sessions"] = fmt.Sprintf("%d active", s.sessions.Count())
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics exposes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	var b strings.Builder

	metric := func(name, help, kind string) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
	}

	if s.dispatcher != nil {
		stats := s.dispatcher.Stats()
		metric("txview_store_failures_total", "Failed store requests by operation.", "counter")
		ops := make([]string, 0, len(stats.Failures))
		for op := range stats.Failures {
			ops = append(ops, string(op))
		}
		sort.Strings(ops)
		for _, op := range ops {
			fmt.Fprintf(&b, "txview_store_failures_total{operation=%q} %d\n", op, stats.Failures[store.Operation(op)])
		}
		metric("txview_diagnostics_sink_errors_total", "Diagnostic events a sink failed to record.", "counter")
		fmt.Fprintf(&b, "txview_diagnostics_sink_errors_total %d\n", stats.SinkErrors)
	}

	tm := s.tracer.GetMetrics()
	metric("txview_http_requests_total", "HTTP requests served.", "counter")
	fmt.Fprintf(&b, "txview_http_requests_total %d\n", tm.TotalRequests)
	metric("txview_http_requests_in_flight", "HTTP requests being served.", "gauge")
	fmt.Fprintf(&b, "txview_http_requests_in_flight %d\n", tm.InFlight)
	metric("txview_http_responses_errors_total", "HTTP error responses by class.", "counter")
	fmt.Fprintf(&b, "txview_http_responses_errors_total{class=\"4xx\"} %d\n", tm.ClientErrors)
	fmt.Fprintf(&b, "txview_http_responses_errors_total{class=\"5xx\"} %d\n", tm.ServerErrors)
	metric("txview_http_response_time_avg_microseconds", "Average response time.", "gauge")
	fmt.Fprintf(&b, "txview_http_response_time_avg_microseconds %d\n", tm.AverageResponseTime)

	if s.limiter != nil {
		rm := s.limiter.GetMetrics()
		metric("txview_ratelimit_requests_total", "Rate-limited requests by outcome.", "counter")
		fmt.Fprintf(&b, "txview_ratelimit_requests_total{outcome=\"allowed\"} %d\n", rm.Allowed)
		fmt.Fprintf(&b, "txview_ratelimit_requests_total{outcome=\"limited\"} %d\n", rm.Limited)
		metric("txview_ratelimit_clients", "Clients tracked by the rate limiter.", "gauge")
		fmt.Fprintf(&b, "txview_ratelimit_clients %d\n", rm.ClientCount)
	}

	dm := s.detector.GetMetrics()
	metric("txview_security_suspicious_requests_total", "Requests flagged as probes.", "counter")
	fmt.Fprintf(&b, "txview_security_suspicious_requests_total %d\n", dm.SuspiciousRequests)
	metric("txview_security_invalid_ip_total", "Requests with an unparseable client address.", "counter")
	fmt.Fprintf(&b, "txview_security_invalid_ip_total %d\n", dm.InvalidIPAttempts)

	if s.sessions != nil {
		metric("txview_sessions_active", "Live per-browser views.", "gauge")
		fmt.Fprintf(&b, "txview_sessions_active %d\n", s.sessions.Count())
	}

	NewHTMXResponse().
		Header("Content-Type", "text/plain; version=0.0.4; charset=utf-8").
		BodyString(b.String()).
		Write(w)
}

// handleDiagnostics lists the most recent journaled failures.
func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		NotFoundError("Diagnostics journal is not configured").Write(w)
		return
	}

	events, err := s.journal.Recent(r.Context(), ParseLimit(r.URL.Query()))
	if err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Failed to read diagnostics",
			log.FieldError, err.Error())
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read diagnostics"})
		return
	}
	if events == nil {
		events = []diagnostics.Event{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(events),
		"events": events,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
