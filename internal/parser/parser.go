package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/estensen/contract-activity/internal/models"
)

var (
	ErrMalformedRecord = errors.New("malformed record")
	ErrMissingField    = errors.New("missing field")
	ErrInvalidField    = errors.New("invalid field")
	ErrNotAnObject     = errors.New("record is not an object")
)

// MalformedRecordError names the record and the field that failed projection.
type MalformedRecordError struct {
	Index int
	Field string
	Err   error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("record %d: %s: %v", e.Index, e.Field, e.Err)
}

func (e *MalformedRecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

// Mode decides what happens to a batch that contains malformed records.
type Mode int

const (
	// Lenient skips malformed records and reports them in Result.
	Lenient Mode = iota
	// Strict fails the whole batch on the first malformed record.
	Strict
)

func (m Mode) String() string {
	if m == Strict {
		return "strict"
	}
	return "lenient"
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	switch string(text) {
	case "strict":
		*m = Strict
	case "lenient", "":
		*m = Lenient
	default:
		return fmt.Errorf("unknown mode %q", text)
	}
	return nil
}

// Result is the outcome of normalizing one batch.
type Result struct {
	Events  []models.ActivityEvent
	Skipped int
	Errors  []*MalformedRecordError
}

// Projector turns one raw explorer record into an ActivityEvent.
type Projector interface {
	Project(rec models.Record) (models.ActivityEvent, error)
}

// ProjectorFunc adapts a function to Projector.
type ProjectorFunc func(rec models.Record) (models.ActivityEvent, error)

func (f ProjectorFunc) Project(rec models.Record) (models.ActivityEvent, error) {
	return f(rec)
}

// ProjectorFor returns the projection for a source shape.
func ProjectorFor(shape models.SourceShape) (Projector, error) {
	switch shape {
	case models.TokenTransfer:
		return ProjectorFunc(ProjectTokenTransfer), nil
	case models.GeneralTransaction:
		return ProjectorFunc(ProjectGeneralTransaction), nil
	default:
		return nil, fmt.Errorf("unsupported source shape %s", shape)
	}
}

// Normalize projects records in input order. A nil record stands for an
// explorer item that was not a JSON object.
func Normalize(records []models.Record, shape models.SourceShape, mode Mode) (Result, error) {
	projector, err := ProjectorFor(shape)
	if err != nil {
		return Result{}, err
	}

	res := Result{Events: make([]models.ActivityEvent, 0, len(records))}
	for i, rec := range records {
		var event models.ActivityEvent
		var err error
		if rec == nil {
			err = &fieldError{field: "record", err: ErrNotAnObject}
		} else {
			event, err = projector.Project(rec)
		}
		if err != nil {
			var fieldErr *fieldError
			mre := &MalformedRecordError{Index: i, Err: err}
			if errors.As(err, &fieldErr) {
				mre.Field = fieldErr.field
				mre.Err = fieldErr.err
			}
			if mode == Strict {
				return Result{}, mre
			}
			res.Skipped++
			res.Errors = append(res.Errors, mre)
			continue
		}
		res.Events = append(res.Events, event)
	}
	return res, nil
}

// ProjectTokenTransfer maps a token transfer: the recipient is the active wallet.
func ProjectTokenTransfer(rec models.Record) (models.ActivityEvent, error) {
	wallet, err := requireHash(rec, "to")
	if err != nil {
		return models.ActivityEvent{}, err
	}
	from, err := requireHash(rec, "from")
	if err != nil {
		return models.ActivityEvent{}, err
	}
	ts, err := requireTimestamp(rec)
	if err != nil {
		return models.ActivityEvent{}, err
	}

	return models.NewActivityEvent(
		wallet,
		ts,
		orNotAvailable(lookupIdentifier(rec, "block_number")),
		orNotAvailable(lookupIdentifier(rec, "transaction_hash")),
		from,
		orNotAvailable(lookupString(rec, "method")),
		"",
	)
}

// ProjectGeneralTransaction maps a contract transaction: the sender is the active wallet.
func ProjectGeneralTransaction(rec models.Record) (models.ActivityEvent, error) {
	wallet, err := requireHash(rec, "from")
	if err != nil {
		return models.ActivityEvent{}, err
	}
	ts, err := requireTimestamp(rec)
	if err != nil {
		return models.ActivityEvent{}, err
	}

	return models.NewActivityEvent(
		wallet,
		ts,
		orNotAvailable(lookupIdentifier(rec, "block")),
		orNotAvailable(lookupIdentifier(rec, "hash")),
		wallet,
		orNotAvailable(lookupString(rec, "method")),
		txType(rec),
	)
}

// ParseTimestamp parses an ISO-8601 timestamp with a Z or numeric offset into UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

type fieldError struct {
	field string
	err   error
}

func (e *fieldError) Error() string { return e.field + ": " + e.err.Error() }

func (e *fieldError) Unwrap() error { return e.err }

func requireHash(rec models.Record, key string) (string, error) {
	field := key + ".hash"
	var nested map[string]any
	switch v := rec[key].(type) {
	case map[string]any:
		nested = v
	case models.Record:
		nested = v
	default:
		return "", &fieldError{field: field, err: ErrMissingField}
	}
	hash, ok := nested["hash"].(string)
	if !ok || hash == "" {
		return "", &fieldError{field: field, err: ErrMissingField}
	}
	return hash, nil
}

func requireTimestamp(rec models.Record) (time.Time, error) {
	raw, ok := lookupString(rec, "timestamp")
	if !ok {
		return time.Time{}, &fieldError{field: "timestamp", err: ErrMissingField}
	}
	ts, err := ParseTimestamp(raw)
	if err != nil {
		return time.Time{}, &fieldError{field: "timestamp", err: fmt.Errorf("%w: %v", ErrInvalidField, err)}
	}
	return ts, nil
}

func lookupString(rec models.Record, key string) (string, bool) {
	s, ok := rec[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// lookupIdentifier accepts string or numeric identifiers.
func lookupIdentifier(rec models.Record, key string) (string, bool) {
	switch v := rec[key].(type) {
	case string:
		return v, v != ""
	case json.Number:
		return v.String(), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	default:
		return "", false
	}
}

func orNotAvailable(v string, ok bool) string {
	if !ok {
		return models.NotAvailable
	}
	return v
}

// txType returns the first tx_types label, or DefaultTxType when it is
// absent, empty or not a non-empty string.
func txType(rec models.Record) string {
	types, ok := rec["tx_types"].([]any)
	if !ok || len(types) == 0 {
		return models.DefaultTxType
	}
	first, ok := types[0].(string)
	if !ok || first == "" {
		return models.DefaultTxType
	}
	return first
}
