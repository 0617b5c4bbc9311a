package metrics

import (
	"sort"

	"github.com/estensen/contract-activity/internal/models"
)

// Summary holds the headline numbers shown above the MAU/DAU views.
// Averages and medians are truncated to whole users.
type Summary struct {
	TotalEvents   int    `json:"total_events"`
	UniqueWallets int    `json:"unique_wallets"`
	HasMAU        bool   `json:"has_mau"`
	LatestMonth   string `json:"latest_month,omitempty"`
	LatestMAU     int    `json:"latest_mau"`
	HasDAU        bool   `json:"has_dau"`
	AvgDAU        int    `json:"avg_dau"`
	MaxDAU        int    `json:"max_dau"`
	MinDAU        int    `json:"min_dau"`
	MedianDAU     int    `json:"median_dau"`
}

// Summarize computes the key metrics for one snapshot.
func Summarize(totalEvents int, views models.Views) Summary {
	s := Summary{
		TotalEvents:   totalEvents,
		UniqueWallets: len(views.UniqueWallets),
	}

	if n := len(views.MonthlyActiveUsers); n > 0 {
		latest := views.MonthlyActiveUsers[n-1]
		s.HasMAU = true
		s.LatestMonth = latest.Month
		s.LatestMAU = latest.ActiveUsers
	}

	if len(views.DailyActiveUsers) == 0 {
		return s
	}

	counts := make([]int, 0, len(views.DailyActiveUsers))
	sum := 0
	for _, d := range views.DailyActiveUsers {
		counts = append(counts, d.ActiveUsers)
		sum += d.ActiveUsers
	}
	sort.Ints(counts)

	s.HasDAU = true
	s.AvgDAU = sum / len(counts)
	s.MinDAU = counts[0]
	s.MaxDAU = counts[len(counts)-1]
	s.MedianDAU = median(counts)
	return s
}

// median expects sorted input.
func median(sorted []int) int {
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
