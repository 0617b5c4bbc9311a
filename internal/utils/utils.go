package utils

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/estensen/contract-activity/internal/metrics"
	"github.com/estensen/contract-activity/internal/models"
)

// PreviewRows is how many raw events the terminal report shows.
const PreviewRows = 20

// Report is what DisplayReport renders.
type Report struct {
	AppName string
	Summary metrics.Summary
	Views   models.Views
	Events  []models.ActivityEvent
	Skipped int
}

// DisplayReport prints key metrics, MAU, DAU and a raw event preview as tables.
func DisplayReport(w io.Writer, r Report) {
	if r.Summary.TotalEvents == 0 {
		if r.Skipped > 0 {
			fmt.Fprintf(w, "All %d records for %s were malformed; skipped %d.\n", r.Skipped, r.AppName, r.Skipped)
			return
		}
		fmt.Fprintf(w, "No activity found for %s.\n", r.AppName)
		return
	}

	fmt.Fprintf(w, "Contract Analytics for %s:\n", r.AppName)

	key := newTable(w)
	key.SetTitle("Key Metrics")
	key.AppendHeader(table.Row{"Total Events", "Unique Wallets", "Latest MAU", "Avg DAU", "Max DAU", "Min DAU", "Median DAU"})
	key.AppendRow(table.Row{
		r.Summary.TotalEvents,
		r.Summary.UniqueWallets,
		r.Summary.LatestMAU,
		r.Summary.AvgDAU,
		r.Summary.MaxDAU,
		r.Summary.MinDAU,
		r.Summary.MedianDAU,
	})
	key.Render()

	if r.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d malformed records.\n", r.Skipped)
	}

	mau := newTable(w)
	mau.SetTitle("Monthly Active Users")
	mau.AppendHeader(table.Row{"Month", "App", "MAU"})
	for _, m := range r.Views.MonthlyActiveUsers {
		mau.AppendRow(table.Row{m.Month, r.AppName, m.ActiveUsers})
	}
	mau.Render()

	dau := newTable(w)
	dau.SetTitle("Daily Active Users")
	dau.AppendHeader(table.Row{"Date", "App", "DAU"})
	for _, d := range r.Views.DailyActiveUsers {
		dau.AppendRow(table.Row{d.Date, r.AppName, d.ActiveUsers})
	}
	dau.Render()

	raw := newTable(w)
	raw.SetTitle(fmt.Sprintf("Raw Data (first %d of %d)", min(PreviewRows, len(r.Events)), len(r.Events)))
	raw.AppendHeader(table.Row{"Wallet", "Timestamp", "Block", "Tx Hash", "From", "Method", "Tx Type"})
	for _, e := range r.Events[:min(PreviewRows, len(r.Events))] {
		raw.AppendRow(table.Row{
			e.WalletAddress,
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.BlockNumber,
			ShortHash(e.TxHash),
			e.FromAddress,
			e.Method,
			e.TxType,
		})
	}
	raw.Render()
}

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	return t
}

// ShortHash abbreviates long hashes as 0x1234…abcd.
func ShortHash(h string) string {
	if len(h) <= 14 {
		return h
	}
	return h[:6] + "…" + h[len(h)-4:]
}
