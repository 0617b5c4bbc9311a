package loader

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/estensen/contract-activity/internal/models"
)

type Loader interface {
	Load(ctx context.Context, rows []models.ActivityRow) error
}

// ClickHouseLoader loads MAU/DAU rows into ClickHouse.
type ClickHouseLoader struct {
	Conn clickhouse.Conn
}

func NewClickHouseLoader(conn clickhouse.Conn) *ClickHouseLoader {
	return &ClickHouseLoader{
		Conn: conn,
	}
}

// Load inserts the rows in one batch.
func (l *ClickHouseLoader) Load(ctx context.Context, rows []models.ActivityRow) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := l.Conn.PrepareBatch(ctx, "INSERT INTO contract_activity (period, granularity, app_name, contract_address, active_users, fetched_at)")
	if err != nil {
		return fmt.Errorf("error preparing ClickHouse batch: %w", err)
	}

	for _, row := range rows {
		err := batch.Append(row.Period, row.Granularity, row.AppName, row.ContractAddress, row.ActiveUsers, row.FetchedAt)
		if err != nil {
			return fmt.Errorf("error appending to ClickHouse batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("error sending batch to ClickHouse: %w", err)
	}
	return nil
}

// RowsFromViews flattens MAU and DAU into storable rows.
func RowsFromViews(appName, contract string, fetchedAt time.Time, views models.Views) []models.ActivityRow {
	rows := make([]models.ActivityRow, 0, len(views.MonthlyActiveUsers)+len(views.DailyActiveUsers))
	for _, m := range views.MonthlyActiveUsers {
		rows = append(rows, models.ActivityRow{
			Period:          m.Month,
			Granularity:     models.GranularityMonth,
			AppName:         appName,
			ContractAddress: contract,
			ActiveUsers:     uint64(m.ActiveUsers),
			FetchedAt:       fetchedAt,
		})
	}
	for _, d := range views.DailyActiveUsers {
		rows = append(rows, models.ActivityRow{
			Period:          d.Date,
			Granularity:     models.GranularityDay,
			AppName:         appName,
			ContractAddress: contract,
			ActiveUsers:     uint64(d.ActiveUsers),
			FetchedAt:       fetchedAt,
		})
	}
	return rows
}
