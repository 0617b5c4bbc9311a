package database

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"

	"github.com/estensen/contract-activity/internal/models"
)

// FetchActivity retrieves the latest stored MAU or DAU series for an app.
func FetchActivity(ctx context.Context, conn clickhouse.Conn, appName, granularity string) ([]models.ActivityRow, error) {
	var rows []models.ActivityRow
	query := `
        SELECT
            period,
            granularity,
            app_name,
            contract_address,
            active_users,
            fetched_at
        FROM contract_activity FINAL
        WHERE app_name = ? AND granularity = ?
        ORDER BY period
        `

	if err := conn.Select(ctx, &rows, query, appName, granularity); err != nil {
		return nil, fmt.Errorf("error executing query '%s': %w", query, err)
	}

	return rows, nil
}

// ActivityStore exposes stored activity series to the API.
type ActivityStore struct {
	Conn clickhouse.Conn
}

func NewActivityStore(conn clickhouse.Conn) *ActivityStore {
	return &ActivityStore{Conn: conn}
}

func (s *ActivityStore) FetchActivity(ctx context.Context, appName, granularity string) ([]models.ActivityRow, error) {
	return FetchActivity(ctx, s.Conn, appName, granularity)
}
