package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitescope/sitescope-be/internal/api/storage"
)

func TestAnalysisCursorRoundTrip(t *testing.T) {
	original := &storage.AnalysisCursor{
		CreatedAt:  time.Date(2026, 5, 14, 9, 30, 0, 123456789, time.UTC),
		AnalysisID: "11111111-2222-3333-4444-555555555555",
	}

	encoded := EncodeAnalysisCursor(original)

	decoded, err := DecodeAnalysisCursor(encoded)
	require.NoError(t, err)
	require.NotNil(t, decoded)

	assert.Equal(t, original.AnalysisID, decoded.AnalysisID)
	assert.True(t, original.CreatedAt.Equal(decoded.CreatedAt))
}

func TestDecodeAnalysisCursor_Empty(t *testing.T) {
	cursor, err := DecodeAnalysisCursor("")
	require.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecodeAnalysisCursor_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		cursor string
	}{
		{"not base64", "!!!not-base64!!!"},
		{"missing separator", base64.StdEncoding.EncodeToString([]byte("12345"))},
		{"empty analysis id", base64.StdEncoding.EncodeToString([]byte("12345|"))},
		{"non-numeric timestamp", base64.StdEncoding.EncodeToString([]byte("abc|some-id"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeAnalysisCursor(tt.cursor)
			assert.Error(t, err)
		})
	}
}
