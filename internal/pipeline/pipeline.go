package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/estensen/contract-activity/internal/aggregator"
	"github.com/estensen/contract-activity/internal/config"
	"github.com/estensen/contract-activity/internal/explorer"
	"github.com/estensen/contract-activity/internal/export"
	"github.com/estensen/contract-activity/internal/loader"
	"github.com/estensen/contract-activity/internal/metrics"
	"github.com/estensen/contract-activity/internal/models"
	"github.com/estensen/contract-activity/internal/parser"
	"github.com/estensen/contract-activity/internal/token"
)

var ErrEmptyResult = errors.New("no activity found for contract")

// EmptyResultError is a soft failure: the explorer answered but returned no
// items. The snapshot returned alongside it is valid and empty.
type EmptyResultError struct {
	URL string
}

func (e *EmptyResultError) Error() string {
	return fmt.Sprintf("%v: %s returned no items", ErrEmptyResult, e.URL)
}

func (e *EmptyResultError) Unwrap() error { return ErrEmptyResult }

// Request holds the inputs of one fetch-and-aggregate cycle.
type Request struct {
	BaseURL         string             `json:"base_url"`
	ContractAddress string             `json:"contract_address"`
	Shape           models.SourceShape `json:"shape"`
	TokenStandard   string             `json:"token_standard,omitempty"`
	AppName         string             `json:"app_name"`
	Mode            parser.Mode        `json:"mode"`
}

// RequestFromConfig builds the default request from process configuration.
func RequestFromConfig(cfg config.Config) (Request, error) {
	shape, err := models.ParseSourceShape(cfg.ContractShape)
	if err != nil {
		return Request{}, &config.ConfigError{Field: "contract shape", Reason: err.Error()}
	}
	mode := parser.Lenient
	if cfg.Strict {
		mode = parser.Strict
	}
	return Request{
		BaseURL:         cfg.ExplorerURL,
		ContractAddress: cfg.ContractAddress,
		Shape:           shape,
		TokenStandard:   cfg.TokenStandard,
		AppName:         cfg.AppName,
		Mode:            mode,
	}, nil
}

// Normalized trims the free-text fields so the stored request matches
// what is queried and loaded.
func (r Request) Normalized() Request {
	r.BaseURL = strings.TrimSpace(r.BaseURL)
	r.ContractAddress = strings.TrimSpace(r.ContractAddress)
	r.TokenStandard = strings.TrimSpace(r.TokenStandard)
	r.AppName = strings.TrimSpace(r.AppName)
	return r
}

// Validate fails fast on inputs that would make the fetch pointless.
func (r Request) Validate() error {
	if err := config.ValidateBaseURL(r.BaseURL); err != nil {
		return err
	}
	if err := config.ValidateContractAddress(r.ContractAddress); err != nil {
		return err
	}
	if r.Shape != models.TokenTransfer && r.Shape != models.GeneralTransaction {
		return &config.ConfigError{Field: "contract shape", Reason: r.Shape.String()}
	}
	return nil
}

// Query returns the explorer query; the token standard only applies to transfers.
func (r Request) Query() explorer.Query {
	q := explorer.Query{
		BaseURL:         strings.TrimSpace(r.BaseURL),
		ContractAddress: strings.TrimSpace(r.ContractAddress),
		Shape:           r.Shape,
	}
	if r.Shape == models.TokenTransfer {
		q.TokenStandard = token.NormalizeStandard(r.TokenStandard)
	}
	return q
}

// Snapshot is the immutable result of one cycle. Consumers must not modify it.
type Snapshot struct {
	Request   Request
	FetchedAt time.Time
	Events    []models.ActivityEvent
	Views     models.Views
	Summary   metrics.Summary
	Skipped   int
	Malformed []*parser.MalformedRecordError
}

// Empty reports whether the cycle produced no events.
func (s *Snapshot) Empty() bool {
	return len(s.Events) == 0
}

// Dataset exposes the snapshot to the exporters.
func (s *Snapshot) Dataset() export.Dataset {
	return export.Dataset{
		AppName:     s.Request.AppName,
		GeneratedAt: s.FetchedAt,
		Events:      s.Events,
		Views:       s.Views,
	}
}

// Cycle runs fetch, normalize, aggregate and summarize.
type Cycle struct {
	API        explorer.API
	Aggregator aggregator.Aggregator
	Exporter   *export.Exporter
	Loader     loader.Loader

	logger *zap.Logger
	now    func() time.Time
}

type Option func(*Cycle)

func WithExporter(e *export.Exporter) Option {
	return func(c *Cycle) { c.Exporter = e }
}

func WithLoader(l loader.Loader) Option {
	return func(c *Cycle) { c.Loader = l }
}

func WithClock(now func() time.Time) Option {
	return func(c *Cycle) { c.now = now }
}

func NewCycle(api explorer.API, logger *zap.Logger, opts ...Option) *Cycle {
	c := &Cycle{
		API:        api,
		Aggregator: aggregator.NewAggregator(),
		logger:     logger,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run executes one cycle. On an *EmptyResultError the returned snapshot is
// still usable; every other error returns a nil snapshot.
func (c *Cycle) Run(ctx context.Context, req Request) (*Snapshot, error) {
	req = req.Normalized()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	q := req.Query()
	log := c.logger.With(
		zap.String("contract", q.ContractAddress),
		zap.Stringer("shape", q.Shape),
		zap.String("app", req.AppName),
	)
	log.Info("Fetching contract activity", zap.String("url", q.URL()))

	records, err := c.API.FetchItems(ctx, q)
	if err != nil {
		log.Error("Fetch failed", zap.Error(err))
		return nil, err
	}

	snap := &Snapshot{
		Request:   req,
		FetchedAt: c.now().UTC(),
	}

	if len(records) == 0 {
		snap.Events = []models.ActivityEvent{}
		snap.Views = c.Aggregator.Aggregate(nil)
		snap.Summary = metrics.Summarize(0, snap.Views)
		log.Warn("No activity found for contract")
		return snap, &EmptyResultError{URL: q.URL()}
	}

	res, err := parser.Normalize(records, q.Shape, req.Mode)
	if err != nil {
		log.Error("Malformed record", zap.Error(err))
		return nil, err
	}
	if res.Skipped > 0 {
		log.Warn("Skipped malformed records",
			zap.Int("skipped", res.Skipped),
			zap.Int("records", len(records)),
			zap.Error(res.Errors[0]))
	}

	snap.Events = res.Events
	snap.Skipped = res.Skipped
	snap.Malformed = res.Errors
	snap.Views = c.Aggregator.Aggregate(res.Events)
	snap.Summary = metrics.Summarize(len(res.Events), snap.Views)

	log.Info("Aggregated contract activity",
		zap.Int("events", snap.Summary.TotalEvents),
		zap.Int("unique_wallets", snap.Summary.UniqueWallets),
		zap.Int("months", len(snap.Views.MonthlyActiveUsers)),
		zap.Int("days", len(snap.Views.DailyActiveUsers)))

	return snap, nil
}

// Publish hands a snapshot to the configured sinks. Empty snapshots are not published.
func (c *Cycle) Publish(ctx context.Context, snap *Snapshot) error {
	if snap == nil || snap.Empty() {
		return nil
	}

	var errs []error
	if c.Exporter != nil {
		if _, err := c.Exporter.Export(ctx, snap.Dataset()); err != nil {
			c.logger.Error("Export failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("export: %w", err))
		}
	}
	if c.Loader != nil {
		rows := loader.RowsFromViews(snap.Request.AppName, snap.Request.ContractAddress, snap.FetchedAt, snap.Views)
		if err := c.Loader.Load(ctx, rows); err != nil {
			c.logger.Error("Loading into ClickHouse failed", zap.Error(err))
			errs = append(errs, fmt.Errorf("load: %w", err))
		} else {
			c.logger.Info("Loaded activity rows", zap.Int("rows", len(rows)))
		}
	}
	return errors.Join(errs...)
}
