package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// NotAvailable is substituted for optional identifiers the explorer omits.
	NotAvailable = "N/A"

	// DefaultTxType labels general transactions that carry no tx_types.
	DefaultTxType = "contract_call"

	DateLayout  = "2006-01-02"
	MonthLayout = "2006-01"
)

var ErrEmptyWallet = errors.New("wallet address is empty")

// SourceShape selects which explorer endpoint and record layout is used.
type SourceShape int

const (
	TokenTransfer SourceShape = iota
	GeneralTransaction
)

func (s SourceShape) String() string {
	switch s {
	case TokenTransfer:
		return "token_transfer"
	case GeneralTransaction:
		return "general_transaction"
	default:
		return fmt.Sprintf("SourceShape(%d)", int(s))
	}
}

func (s SourceShape) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *SourceShape) UnmarshalText(text []byte) error {
	shape, err := ParseSourceShape(string(text))
	if err != nil {
		return err
	}
	*s = shape
	return nil
}

// ParseSourceShape maps user-facing labels onto a SourceShape.
func ParseSourceShape(s string) (SourceShape, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "token", "token_transfer", "token_transfers", "token contract":
		return TokenTransfer, nil
	case "general", "transaction", "transactions", "general_transaction", "general contract":
		return GeneralTransaction, nil
	default:
		return 0, fmt.Errorf("unknown contract shape %q", s)
	}
}

// Record is one untyped item from an explorer "items" array.
type Record map[string]any

// ActivityEvent is the common projection of a token transfer or a general
// transaction. Date and Month are always derived from Timestamp.
type ActivityEvent struct {
	WalletAddress string
	Timestamp     time.Time
	BlockNumber   string
	TxHash        string
	FromAddress   string
	Method        string
	TxType        string
}

// NewActivityEvent normalizes the timestamp to UTC and rejects events without a wallet.
func NewActivityEvent(wallet string, ts time.Time, blockNumber, txHash, from, method, txType string) (ActivityEvent, error) {
	if wallet == "" {
		return ActivityEvent{}, ErrEmptyWallet
	}
	return ActivityEvent{
		WalletAddress: wallet,
		Timestamp:     ts.UTC(),
		BlockNumber:   blockNumber,
		TxHash:        txHash,
		FromAddress:   from,
		Method:        method,
		TxType:        txType,
	}, nil
}

// Date returns the UTC calendar date as YYYY-MM-DD.
func (e ActivityEvent) Date() string {
	return e.Timestamp.UTC().Format(DateLayout)
}

// Month returns the UTC year-month as YYYY-MM.
func (e ActivityEvent) Month() string {
	return e.Timestamp.UTC().Format(MonthLayout)
}

type MonthlyActive struct {
	Month       string `json:"month"`
	ActiveUsers int    `json:"mau"`
}

type DailyActive struct {
	Date        string `json:"date"`
	ActiveUsers int    `json:"dau"`
}

// Views holds everything derived from one event sequence.
type Views struct {
	UniqueWallets      []string        `json:"unique_wallets"`
	MonthlyActiveUsers []MonthlyActive `json:"monthly_active_users"`
	DailyActiveUsers   []DailyActive   `json:"daily_active_users"`
}

const (
	GranularityMonth = "month"
	GranularityDay   = "day"
)

// ActivityRow is one MAU or DAU bucket as stored in ClickHouse.
type ActivityRow struct {
	Period          string    `ch:"period" json:"period"`
	Granularity     string    `ch:"granularity" json:"granularity"`
	AppName         string    `ch:"app_name" json:"app_name"`
	ContractAddress string    `ch:"contract_address" json:"contract_address"`
	ActiveUsers     uint64    `ch:"active_users" json:"active_users"`
	FetchedAt       time.Time `ch:"fetched_at" json:"fetched_at"`
}
