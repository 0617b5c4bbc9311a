package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estensen/contract-activity/internal/config"
	"github.com/estensen/contract-activity/internal/explorer"
	"github.com/estensen/contract-activity/internal/export"
	"github.com/estensen/contract-activity/internal/models"
	"github.com/estensen/contract-activity/internal/parser"
)

const contract = "0x4F83314E4752E7f732210D043B218B269989a181"

type fakeAPI struct {
	records []models.Record
	err     error
	calls   int
	last    explorer.Query
}

func (f *fakeAPI) FetchItems(_ context.Context, q explorer.Query) ([]models.Record, error) {
	f.calls++
	f.last = q
	return f.records, f.err
}

type fakeLoader struct {
	rows []models.ActivityRow
	err  error
}

func (f *fakeLoader) Load(_ context.Context, rows []models.ActivityRow) error {
	f.rows = rows
	return f.err
}

type memStorage struct {
	names []string
}

func (m *memStorage) UploadFile(_ context.Context, name, _ string, r io.Reader) error {
	_, _ = io.Copy(io.Discard, r)
	m.names = append(m.names, name)
	return nil
}

func records(t *testing.T, raw string) []models.Record {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var recs []models.Record
	require.NoError(t, dec.Decode(&recs))
	return recs
}

func request(shape models.SourceShape) Request {
	return Request{
		BaseURL:         "https://camp.cloud.blockscout.com",
		ContractAddress: contract,
		Shape:           shape,
		TokenStandard:   "erc721",
		AppName:         "Mystery Box",
	}
}

var fixedNow = func() time.Time { return time.Date(2024, 4, 2, 15, 4, 5, 0, time.UTC) }

func TestRunTokenTransfers(t *testing.T) {
	api := &fakeAPI{records: records(t, `[
		{"to":{"hash":"0xA"},"from":{"hash":"0x0"},"timestamp":"2024-03-01T12:00:00Z","transaction_hash":"0xT1"},
		{"to":{"hash":"0xB"},"from":{"hash":"0x0"},"timestamp":"2024-03-01T13:00:00Z","transaction_hash":"0xT2"},
		{"to":{"hash":"0xA"},"from":{"hash":"0xB"},"timestamp":"2024-04-05T00:00:00Z","transaction_hash":"0xT3"}
	]`)}
	cycle := NewCycle(api, zap.NewNop(), WithClock(fixedNow))

	snap, err := cycle.Run(context.Background(), request(models.TokenTransfer))
	require.NoError(t, err)

	assert.Equal(t, "ERC-721", api.last.TokenStandard)
	assert.Equal(t, fixedNow(), snap.FetchedAt)
	assert.Len(t, snap.Events, 3)
	assert.Equal(t, []string{"0xA", "0xB"}, snap.Views.UniqueWallets)
	assert.Equal(t, []models.MonthlyActive{
		{Month: "2024-03", ActiveUsers: 2},
		{Month: "2024-04", ActiveUsers: 1},
	}, snap.Views.MonthlyActiveUsers)
	assert.Equal(t, 3, snap.Summary.TotalEvents)
	assert.Equal(t, 1, snap.Summary.LatestMAU)
	assert.False(t, snap.Empty())
}

func TestRunGeneralTransactionsIgnoresTokenStandard(t *testing.T) {
	api := &fakeAPI{records: records(t, `[
		{"from":{"hash":"0xC"},"timestamp":"2024-03-02T00:00:00Z","hash":"0xT2","tx_types":["mint"]}
	]`)}
	cycle := NewCycle(api, zap.NewNop())

	snap, err := cycle.Run(context.Background(), request(models.GeneralTransaction))
	require.NoError(t, err)

	assert.Empty(t, api.last.TokenStandard)
	require.Len(t, snap.Events, 1)
	assert.Equal(t, "mint", snap.Events[0].TxType)
}

func TestRunConfigErrorMakesNoCall(t *testing.T) {
	tests := []struct {
		name string
		req  Request
	}{
		{name: "empty contract", req: Request{BaseURL: "https://explorer.example"}},
		{name: "malformed contract", req: Request{BaseURL: "https://explorer.example", ContractAddress: "0x123"}},
		{name: "empty base URL", req: Request{ContractAddress: contract}},
		{name: "unknown shape", req: Request{BaseURL: "https://explorer.example", ContractAddress: contract, Shape: models.SourceShape(9)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &fakeAPI{}
			snap, err := NewCycle(api, zap.NewNop()).Run(context.Background(), tc.req)

			assert.Nil(t, snap)
			assert.True(t, errors.Is(err, config.ErrInvalidConfig))
			assert.Zero(t, api.calls)
		})
	}
}

func TestRunFetchError(t *testing.T) {
	api := &fakeAPI{err: &explorer.FetchError{URL: "https://explorer.example", StatusCode: 500}}

	snap, err := NewCycle(api, zap.NewNop()).Run(context.Background(), request(models.TokenTransfer))

	assert.Nil(t, snap)
	assert.True(t, errors.Is(err, explorer.ErrFetch))
	assert.False(t, errors.Is(err, ErrEmptyResult))
}

func TestRunEmptyResult(t *testing.T) {
	api := &fakeAPI{records: []models.Record{}}

	snap, err := NewCycle(api, zap.NewNop()).Run(context.Background(), request(models.TokenTransfer))

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyResult))
	assert.False(t, errors.Is(err, explorer.ErrFetch))
	require.NotNil(t, snap)
	assert.True(t, snap.Empty())
	assert.Empty(t, snap.Views.UniqueWallets)
	assert.Empty(t, snap.Views.MonthlyActiveUsers)
	assert.Empty(t, snap.Views.DailyActiveUsers)
}

func TestRunMalformedModes(t *testing.T) {
	raw := `[
		{"to":{"hash":"0xA"},"from":{"hash":"0x0"},"timestamp":"2024-03-01T12:00:00Z"},
		{"from":{"hash":"0x0"},"timestamp":"2024-03-01T12:00:00Z"}
	]`

	t.Run("lenient", func(t *testing.T) {
		api := &fakeAPI{records: records(t, raw)}
		snap, err := NewCycle(api, zap.NewNop()).Run(context.Background(), request(models.TokenTransfer))
		require.NoError(t, err)
		assert.Equal(t, 1, snap.Skipped)
		require.Len(t, snap.Malformed, 1)
		assert.Equal(t, "to.hash", snap.Malformed[0].Field)
		assert.Len(t, snap.Events, 1)
	})

	t.Run("strict", func(t *testing.T) {
		api := &fakeAPI{records: records(t, raw)}
		req := request(models.TokenTransfer)
		req.Mode = parser.Strict
		snap, err := NewCycle(api, zap.NewNop()).Run(context.Background(), req)
		assert.Nil(t, snap)
		assert.True(t, errors.Is(err, parser.ErrMalformedRecord))
	})
}

func TestRunReplacesSnapshot(t *testing.T) {
	api := &fakeAPI{records: records(t, `[{"to":{"hash":"0xA"},"from":{"hash":"0x0"},"timestamp":"2024-03-01T12:00:00Z"}]`)}
	cycle := NewCycle(api, zap.NewNop())

	first, err := cycle.Run(context.Background(), request(models.TokenTransfer))
	require.NoError(t, err)

	api.records = records(t, `[{"to":{"hash":"0xZ"},"from":{"hash":"0x0"},"timestamp":"2024-05-01T12:00:00Z"}]`)
	second, err := cycle.Run(context.Background(), request(models.TokenTransfer))
	require.NoError(t, err)

	assert.Equal(t, []string{"0xA"}, first.Views.UniqueWallets)
	assert.Equal(t, []string{"0xZ"}, second.Views.UniqueWallets)
}

func TestPublish(t *testing.T) {
	api := &fakeAPI{records: records(t, `[{"to":{"hash":"0xA"},"from":{"hash":"0x0"},"timestamp":"2024-03-01T12:00:00Z"}]`)}
	store := &memStorage{}
	ld := &fakeLoader{}
	cycle := NewCycle(api, zap.NewNop(),
		WithClock(fixedNow),
		WithExporter(export.NewExporter(store, zap.NewNop())),
		WithLoader(ld),
	)

	snap, err := cycle.Run(context.Background(), request(models.TokenTransfer))
	require.NoError(t, err)
	require.NoError(t, cycle.Publish(context.Background(), snap))

	assert.Len(t, store.names, 5)
	require.Len(t, ld.rows, 2)
	assert.Equal(t, models.GranularityMonth, ld.rows[0].Granularity)
	assert.Equal(t, contract, ld.rows[0].ContractAddress)
}

func TestPublishLoaderError(t *testing.T) {
	api := &fakeAPI{records: records(t, `[{"to":{"hash":"0xA"},"from":{"hash":"0x0"},"timestamp":"2024-03-01T12:00:00Z"}]`)}
	cycle := NewCycle(api, zap.NewNop(), WithLoader(&fakeLoader{err: errors.New("clickhouse down")}))

	snap, err := cycle.Run(context.Background(), request(models.TokenTransfer))
	require.NoError(t, err)

	err = cycle.Publish(context.Background(), snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "clickhouse down")
}

func TestPublishSkipsEmptySnapshot(t *testing.T) {
	ld := &fakeLoader{}
	cycle := NewCycle(&fakeAPI{}, zap.NewNop(), WithLoader(ld))

	require.NoError(t, cycle.Publish(context.Background(), &Snapshot{}))
	assert.Nil(t, ld.rows)
}

func TestRequestFromConfig(t *testing.T) {
	req, err := RequestFromConfig(config.Config{
		ExplorerURL:     "https://explorer.example",
		ContractAddress: contract,
		ContractShape:   "general",
		AppName:         "app",
		Strict:          true,
	})
	require.NoError(t, err)
	assert.Equal(t, models.GeneralTransaction, req.Shape)
	assert.Equal(t, parser.Strict, req.Mode)

	_, err = RequestFromConfig(config.Config{ContractShape: "nft"})
	assert.True(t, errors.Is(err, config.ErrInvalidConfig))
}

func TestRunMixedPageWithNonObjectItems(t *testing.T) {
	valid := records(t, `[{"to":{"hash":"0xA"},"from":{"hash":"0x0"},"timestamp":"2024-03-01T12:00:00Z"}]`)[0]
	page := []models.Record{valid, nil, valid}

	t.Run("lenient", func(t *testing.T) {
		snap, err := NewCycle(&fakeAPI{records: page}, zap.NewNop()).Run(context.Background(), request(models.TokenTransfer))
		require.NoError(t, err)
		assert.Len(t, snap.Events, 2)
		assert.Equal(t, 1, snap.Skipped)
		require.Len(t, snap.Malformed, 1)
		assert.Equal(t, "record", snap.Malformed[0].Field)
	})

	t.Run("strict", func(t *testing.T) {
		req := request(models.TokenTransfer)
		req.Mode = parser.Strict
		snap, err := NewCycle(&fakeAPI{records: page}, zap.NewNop()).Run(context.Background(), req)
		assert.Nil(t, snap)
		assert.True(t, errors.Is(err, parser.ErrMalformedRecord))
		assert.False(t, errors.Is(err, explorer.ErrFetch))
	})
}

func TestRunStoresTrimmedRequest(t *testing.T) {
	api := &fakeAPI{records: records(t, `[{"to":{"hash":"0xA"},"from":{"hash":"0x0"},"timestamp":"2024-03-01T12:00:00Z"}]`)}
	ld := &fakeLoader{}
	cycle := NewCycle(api, zap.NewNop(), WithLoader(ld))

	req := request(models.TokenTransfer)
	req.ContractAddress = "  " + contract + "\n"
	req.BaseURL = " https://camp.cloud.blockscout.com "
	req.AppName = " Mystery Box "

	snap, err := cycle.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, contract, snap.Request.ContractAddress)
	assert.Equal(t, "https://camp.cloud.blockscout.com", snap.Request.BaseURL)
	assert.Equal(t, "Mystery Box", snap.Request.AppName)
	assert.Equal(t, contract, api.last.ContractAddress)

	require.NoError(t, cycle.Publish(context.Background(), snap))
	require.NotEmpty(t, ld.rows)
	for _, row := range ld.rows {
		assert.Equal(t, contract, row.ContractAddress)
		assert.Equal(t, "Mystery Box", row.AppName)
	}
}
