package loader

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/estensen/contract-activity/internal/models"
)

func TestRowsFromViews(t *testing.T) {
	fetchedAt := time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)
	views := models.Views{
		UniqueWallets:      []string{"0xA", "0xB"},
		MonthlyActiveUsers: []models.MonthlyActive{{Month: "2024-03", ActiveUsers: 2}},
		DailyActiveUsers: []models.DailyActive{
			{Date: "2024-03-01", ActiveUsers: 1},
			{Date: "2024-03-02", ActiveUsers: 2},
		},
	}

	rows := RowsFromViews("Mystery Box", "0xContract", fetchedAt, views)

	require.Len(t, rows, 3)
	assert.Equal(t, models.ActivityRow{
		Period:          "2024-03",
		Granularity:     models.GranularityMonth,
		AppName:         "Mystery Box",
		ContractAddress: "0xContract",
		ActiveUsers:     2,
		FetchedAt:       fetchedAt,
	}, rows[0])
	assert.Equal(t, models.GranularityDay, rows[1].Granularity)
	assert.Equal(t, "2024-03-02", rows[2].Period)
	assert.Equal(t, uint64(2), rows[2].ActiveUsers)
}

func TestRowsFromEmptyViews(t *testing.T) {
	rows := RowsFromViews("app", "0xContract", time.Now(), models.Views{})
	assert.Empty(t, rows)
}

func TestLoadNoRowsSkipsConnection(t *testing.T) {
	l := NewClickHouseLoader(nil)
	assert.NoError(t, l.Load(context.Background(), nil))
}
