package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/estensen/contract-activity/internal/config"
	"github.com/estensen/contract-activity/internal/explorer"
	"github.com/estensen/contract-activity/internal/export"
	"github.com/estensen/contract-activity/internal/metrics"
	"github.com/estensen/contract-activity/internal/models"
	"github.com/estensen/contract-activity/internal/parser"
	"github.com/estensen/contract-activity/internal/pipeline"
)

// Runner runs and publishes fetch cycles.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (*pipeline.Snapshot, error)
	Publish(ctx context.Context, snap *pipeline.Snapshot) error
}

// HistoryStore reads previously loaded MAU/DAU series.
type HistoryStore interface {
	FetchActivity(ctx context.Context, appName, granularity string) ([]models.ActivityRow, error)
}

// Server is the interactive surface: trigger a fetch, then browse and download its views.
type Server struct {
	Cycle    Runner
	Defaults pipeline.Request
	History  HistoryStore

	logger  *zap.Logger
	current atomic.Pointer[pipeline.Snapshot]
}

// NewServer initializes a new API server instance.
func NewServer(cycle Runner, defaults pipeline.Request, history HistoryStore, logger *zap.Logger) *Server {
	return &Server{
		Cycle:    cycle,
		Defaults: defaults,
		History:  history,
		logger:   logger,
	}
}

// SetSnapshot replaces the current snapshot wholesale.
func (s *Server) SetSnapshot(snap *pipeline.Snapshot) {
	s.current.Store(snap)
}

// Snapshot returns the current snapshot, or nil before the first fetch.
func (s *Server) Snapshot() *pipeline.Snapshot {
	return s.current.Load()
}

// NewRouter returns a router with all the routes defined in this package.
func (s *Server) NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/fetch", s.HandleFetch).Methods(http.MethodPost)

	r.HandleFunc("/summary", s.HandleSummary).Methods(http.MethodGet)
	r.HandleFunc("/mau", s.HandleMAU).Methods(http.MethodGet)
	r.HandleFunc("/dau", s.HandleDAU).Methods(http.MethodGet)
	r.HandleFunc("/wallets", s.HandleWallets).Methods(http.MethodGet)
	r.HandleFunc("/events", s.HandleEvents).Methods(http.MethodGet)

	r.HandleFunc("/export/workbook.xlsx", s.HandleWorkbook).Methods(http.MethodGet)
	r.HandleFunc("/export/{view}.csv", s.HandleCSV).Methods(http.MethodGet)

	r.HandleFunc("/history/{granularity}", s.HandleHistory).Methods(http.MethodGet)

	return r
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.NewRouter(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("API server is running", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type fetchResponse struct {
	Request   pipeline.Request `json:"request"`
	FetchedAt time.Time        `json:"fetched_at"`
	Summary   metrics.Summary  `json:"summary"`
	Skipped   int              `json:"skipped"`
	Malformed []string         `json:"malformed,omitempty"`
	Warning   string           `json:"warning,omitempty"`
	Published string           `json:"publish_error,omitempty"`
}

func newFetchResponse(snap *pipeline.Snapshot) fetchResponse {
	resp := fetchResponse{
		Request:   snap.Request,
		FetchedAt: snap.FetchedAt,
		Summary:   snap.Summary,
		Skipped:   snap.Skipped,
	}
	for _, m := range snap.Malformed {
		resp.Malformed = append(resp.Malformed, m.Error())
	}
	return resp
}

// HandleFetch runs one cycle. Fields missing from the body fall back to the defaults.
func (s *Server) HandleFetch(w http.ResponseWriter, r *http.Request) {
	req := s.Defaults
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	snap, err := s.Cycle.Run(r.Context(), req)

	var emptyErr *pipeline.EmptyResultError
	switch {
	case errors.As(err, &emptyErr):
		s.SetSnapshot(snap)
		resp := newFetchResponse(snap)
		resp.Warning = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	case errors.Is(err, config.ErrInvalidConfig):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, explorer.ErrFetch):
		writeError(w, http.StatusBadGateway, err.Error())
		return
	case errors.Is(err, parser.ErrMalformedRecord):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		s.logger.Error("Fetch cycle failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	s.SetSnapshot(snap)
	resp := newFetchResponse(snap)
	if err := s.Cycle.Publish(r.Context(), snap); err != nil {
		resp.Published = err.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requireSnapshot writes a 404 when no fetch has completed yet.
func (s *Server) requireSnapshot(w http.ResponseWriter) *pipeline.Snapshot {
	snap := s.Snapshot()
	if snap == nil {
		writeError(w, http.StatusNotFound, "no data fetched yet, POST /fetch first")
	}
	return snap
}

func (s *Server) HandleSummary(w http.ResponseWriter, r *http.Request) {
	if snap := s.requireSnapshot(w); snap != nil {
		writeJSON(w, http.StatusOK, newFetchResponse(snap))
	}
}

func (s *Server) HandleMAU(w http.ResponseWriter, r *http.Request) {
	if snap := s.requireSnapshot(w); snap != nil {
		writeJSON(w, http.StatusOK, snap.Views.MonthlyActiveUsers)
	}
}

func (s *Server) HandleDAU(w http.ResponseWriter, r *http.Request) {
	if snap := s.requireSnapshot(w); snap != nil {
		writeJSON(w, http.StatusOK, snap.Views.DailyActiveUsers)
	}
}

func (s *Server) HandleWallets(w http.ResponseWriter, r *http.Request) {
	if snap := s.requireSnapshot(w); snap != nil {
		writeJSON(w, http.StatusOK, snap.Views.UniqueWallets)
	}
}

type eventJSON struct {
	WalletAddress string    `json:"wallet_address"`
	Timestamp     time.Time `json:"timestamp"`
	Date          string    `json:"date"`
	Month         string    `json:"month"`
	BlockNumber   string    `json:"block_number"`
	TxHash        string    `json:"tx_hash"`
	FromAddress   string    `json:"from_address"`
	Method        string    `json:"method"`
	TxType        string    `json:"tx_type,omitempty"`
}

// HandleEvents lists raw events; ?limit=N returns the first N.
func (s *Server) HandleEvents(w http.ResponseWriter, r *http.Request) {
	snap := s.requireSnapshot(w)
	if snap == nil {
		return
	}

	events := snap.Events
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit. Use a non-negative integer.")
			return
		}
		events = events[:min(limit, len(events))]
	}

	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, eventJSON{
			WalletAddress: e.WalletAddress,
			Timestamp:     e.Timestamp,
			Date:          e.Date(),
			Month:         e.Month(),
			BlockNumber:   e.BlockNumber,
			TxHash:        e.TxHash,
			FromAddress:   e.FromAddress,
			Method:        e.Method,
			TxType:        e.TxType,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleCSV serves wallets, mau, dau or raw as a CSV download.
func (s *Server) HandleCSV(w http.ResponseWriter, r *http.Request) {
	snap := s.requireSnapshot(w)
	if snap == nil {
		return
	}

	ds := snap.Dataset()
	var prefix string
	var write func(io.Writer) error
	switch mux.Vars(r)["view"] {
	case "wallets":
		prefix = "unique_wallets"
		write = func(w io.Writer) error { return export.WriteWalletsCSV(w, ds.Views.UniqueWallets) }
	case "mau":
		prefix = "mau_data"
		write = func(w io.Writer) error { return export.WriteMAUCSV(w, ds.AppName, ds.Views.MonthlyActiveUsers) }
	case "dau":
		prefix = "dau_data"
		write = func(w io.Writer) error { return export.WriteDAUCSV(w, ds.AppName, ds.Views.DailyActiveUsers) }
	case "raw":
		prefix = "raw_data"
		write = func(w io.Writer) error { return export.WriteEventsCSV(w, ds.Events) }
	default:
		writeError(w, http.StatusNotFound, "unknown export view")
		return
	}

	setDownloadHeaders(w, export.ContentTypeCSV, export.FileName(prefix, "csv", ds.GeneratedAt))
	if err := write(w); err != nil {
		s.logger.Error("Error writing CSV export", zap.String("view", prefix), zap.Error(err))
	}
}

func (s *Server) HandleWorkbook(w http.ResponseWriter, r *http.Request) {
	snap := s.requireSnapshot(w)
	if snap == nil {
		return
	}

	ds := snap.Dataset()
	setDownloadHeaders(w, export.ContentTypeXLSX, export.FileName("contract_analytics", "xlsx", ds.GeneratedAt))
	if err := export.WriteWorkbook(w, ds); err != nil {
		s.logger.Error("Error writing workbook export", zap.Error(err))
	}
}

// HandleHistory returns the stored series for the current app.
func (s *Server) HandleHistory(w http.ResponseWriter, r *http.Request) {
	if s.History == nil {
		writeError(w, http.StatusNotFound, "history is not configured")
		return
	}

	granularity := mux.Vars(r)["granularity"]
	if granularity != models.GranularityMonth && granularity != models.GranularityDay {
		writeError(w, http.StatusBadRequest, "Invalid granularity. Use month or day.")
		return
	}

	appName := r.URL.Query().Get("app")
	if appName == "" {
		appName = s.Defaults.AppName
	}

	rows, err := s.History.FetchActivity(r.Context(), appName, granularity)
	if err != nil {
		s.logger.Error("Error fetching history", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}
	if rows == nil {
		rows = []models.ActivityRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func setDownloadHeaders(w http.ResponseWriter, contentType, fileName string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+fileName+`"`)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
