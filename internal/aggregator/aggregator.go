package aggregator

import (
	"sort"

	"github.com/estensen/contract-activity/internal/models"
)

type Aggregator interface {
	Aggregate(events []models.ActivityEvent) models.Views
}

type SimpleAggregator struct{}

func NewAggregator() *SimpleAggregator {
	return &SimpleAggregator{}
}

// Aggregate derives unique wallets, MAU and DAU in one pass. Counts are set
// cardinalities, and every output is sorted so that the result does not
// depend on input order.
func (a *SimpleAggregator) Aggregate(events []models.ActivityEvent) models.Views {
	wallets := make(map[string]struct{})
	byMonth := make(map[string]map[string]struct{})
	byDate := make(map[string]map[string]struct{})

	for _, event := range events {
		wallets[event.WalletAddress] = struct{}{}
		addToBucket(byMonth, event.Month(), event.WalletAddress)
		addToBucket(byDate, event.Date(), event.WalletAddress)
	}

	views := models.Views{
		UniqueWallets:      sortedKeys(wallets),
		MonthlyActiveUsers: make([]models.MonthlyActive, 0, len(byMonth)),
		DailyActiveUsers:   make([]models.DailyActive, 0, len(byDate)),
	}
	for _, month := range sortedKeys(byMonth) {
		views.MonthlyActiveUsers = append(views.MonthlyActiveUsers, models.MonthlyActive{
			Month:       month,
			ActiveUsers: len(byMonth[month]),
		})
	}
	for _, date := range sortedKeys(byDate) {
		views.DailyActiveUsers = append(views.DailyActiveUsers, models.DailyActive{
			Date:        date,
			ActiveUsers: len(byDate[date]),
		})
	}
	return views
}

func addToBucket(buckets map[string]map[string]struct{}, key, wallet string) {
	bucket, exists := buckets[key]
	if !exists {
		bucket = make(map[string]struct{})
		buckets[key] = bucket
	}
	bucket[wallet] = struct{}{}
}

// sortedKeys works for YYYY-MM and YYYY-MM-DD keys because they sort lexically.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
