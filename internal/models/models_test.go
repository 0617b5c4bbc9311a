package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityEventDerivedFields(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2024, 4, 1, 1, 0, 0, 0, loc)

	e, err := NewActivityEvent("0xA", ts, NotAvailable, NotAvailable, "0xB", NotAvailable, "")
	require.NoError(t, err)

	assert.Equal(t, time.UTC, e.Timestamp.Location())
	assert.Equal(t, "2024-03-31", e.Date())
	assert.Equal(t, "2024-03", e.Month())
}

func TestNewActivityEventRejectsEmptyWallet(t *testing.T) {
	_, err := NewActivityEvent("", time.Now(), NotAvailable, NotAvailable, "", NotAvailable, "")
	assert.True(t, errors.Is(err, ErrEmptyWallet))
}

func TestParseSourceShape(t *testing.T) {
	tests := []struct {
		input     string
		expected  SourceShape
		expectErr bool
	}{
		{input: "token", expected: TokenTransfer},
		{input: "Token Contract", expected: TokenTransfer},
		{input: "general", expected: GeneralTransaction},
		{input: "GENERAL_TRANSACTION", expected: GeneralTransaction},
		{input: "nft", expectErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			shape, err := ParseSourceShape(tc.input)
			if tc.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, shape)
		})
	}
}

func TestSourceShapeText(t *testing.T) {
	text, err := GeneralTransaction.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "general_transaction", string(text))

	var shape SourceShape
	require.NoError(t, shape.UnmarshalText([]byte("token")))
	assert.Equal(t, TokenTransfer, shape)
	assert.Error(t, shape.UnmarshalText([]byte("erc20")))
}
