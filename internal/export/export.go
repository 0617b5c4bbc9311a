package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/estensen/contract-activity/internal/models"
	"github.com/estensen/contract-activity/internal/storage"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	fileTimeLayout = "20060102_150405"
)

var (
	EventsHeader  = []string{"wallet_address", "timestamp", "date", "month", "block_number", "tx_hash", "from_address", "method", "tx_type"}
	WalletsHeader = []string{"wallet_address"}
	MAUHeader     = []string{"month", "app_name", "mau"}
	DAUHeader     = []string{"date", "app_name", "dau"}
)

// Dataset is everything one fetch cycle hands to the exporters.
type Dataset struct {
	AppName     string
	GeneratedAt time.Time
	Events      []models.ActivityEvent
	Views       models.Views
}

// FileName returns names like mau_data_20240301_120000.csv.
func FileName(prefix, ext string, t time.Time) string {
	return fmt.Sprintf("%s_%s.%s", prefix, t.Format(fileTimeLayout), ext)
}

func eventRow(e models.ActivityEvent) []string {
	return []string{
		e.WalletAddress,
		e.Timestamp.Format(time.RFC3339Nano),
		e.Date(),
		e.Month(),
		e.BlockNumber,
		e.TxHash,
		e.FromAddress,
		e.Method,
		e.TxType,
	}
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(header); err != nil {
		return fmt.Errorf("error writing CSV header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("error writing CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("error flushing CSV writer: %w", err)
	}
	return nil
}

// WriteEventsCSV writes one row per event.
func WriteEventsCSV(w io.Writer, events []models.ActivityEvent) error {
	rows := make([][]string, 0, len(events))
	for _, e := range events {
		rows = append(rows, eventRow(e))
	}
	return writeCSV(w, EventsHeader, rows)
}

// WriteWalletsCSV writes the single-column unique wallet list.
func WriteWalletsCSV(w io.Writer, wallets []string) error {
	rows := make([][]string, 0, len(wallets))
	for _, wallet := range wallets {
		rows = append(rows, []string{wallet})
	}
	return writeCSV(w, WalletsHeader, rows)
}

func WriteMAUCSV(w io.Writer, appName string, mau []models.MonthlyActive) error {
	rows := make([][]string, 0, len(mau))
	for _, m := range mau {
		rows = append(rows, []string{m.Month, appName, strconv.Itoa(m.ActiveUsers)})
	}
	return writeCSV(w, MAUHeader, rows)
}

func WriteDAUCSV(w io.Writer, appName string, dau []models.DailyActive) error {
	rows := make([][]string, 0, len(dau))
	for _, d := range dau {
		rows = append(rows, []string{d.Date, appName, strconv.Itoa(d.ActiveUsers)})
	}
	return writeCSV(w, DAUHeader, rows)
}

// Exporter writes every artifact of a dataset to a Storage.
type Exporter struct {
	Storage storage.Storage
	logger  *zap.Logger
}

func NewExporter(s storage.Storage, logger *zap.Logger) *Exporter {
	return &Exporter{
		Storage: s,
		logger:  logger,
	}
}

type artifact struct {
	prefix      string
	ext         string
	contentType string
	write       func(w io.Writer, ds Dataset) error
}

var artifacts = []artifact{
	{"unique_wallets", "csv", ContentTypeCSV, func(w io.Writer, ds Dataset) error {
		return WriteWalletsCSV(w, ds.Views.UniqueWallets)
	}},
	{"mau_data", "csv", ContentTypeCSV, func(w io.Writer, ds Dataset) error {
		return WriteMAUCSV(w, ds.AppName, ds.Views.MonthlyActiveUsers)
	}},
	{"dau_data", "csv", ContentTypeCSV, func(w io.Writer, ds Dataset) error {
		return WriteDAUCSV(w, ds.AppName, ds.Views.DailyActiveUsers)
	}},
	{"raw_data", "csv", ContentTypeCSV, func(w io.Writer, ds Dataset) error {
		return WriteEventsCSV(w, ds.Events)
	}},
	{"contract_analytics", "xlsx", ContentTypeXLSX, WriteWorkbook},
}

// Export renders and uploads all artifacts, returning the object names written.
func (e *Exporter) Export(ctx context.Context, ds Dataset) ([]string, error) {
	names := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		var buf bytes.Buffer
		if err := a.write(&buf, ds); err != nil {
			return names, fmt.Errorf("error rendering %s: %w", a.prefix, err)
		}

		name := FileName(a.prefix, a.ext, ds.GeneratedAt)
		if err := e.Storage.UploadFile(ctx, name, a.contentType, bytes.NewReader(buf.Bytes())); err != nil {
			return names, fmt.Errorf("error storing %s: %w", name, err)
		}
		names = append(names, name)
	}

	e.logger.Info("Exported snapshot", zap.String("app", ds.AppName), zap.Strings("files", names))
	return names, nil
}
