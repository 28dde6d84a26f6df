package handler

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sitescope/sitescope-be/internal/api/storage"
)

// Archive pages are keyed by (created_at, analysis_id), encoded opaquely so
// clients cannot depend on the layout.

func DecodeAnalysisCursor(raw string) (*storage.AnalysisCursor, error) {
	if raw == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	ts, id, ok := strings.Cut(string(decoded), "|")
	if !ok || id == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	nanos, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor timestamp: %w", err)
	}

	return &storage.AnalysisCursor{
		CreatedAt:  time.Unix(0, nanos),
		AnalysisID: id,
	}, nil
}

func EncodeAnalysisCursor(cursor *storage.AnalysisCursor) string {
	raw := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.AnalysisID)
	return base64.StdEncoding.EncodeToString([]byte(raw))
}
