package model

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// Analysis is an archived analysis row. Terminal jobs are copied here so the
// list endpoint survives registry eviction.
type Analysis struct {
	AnalysisID  string         `db:"analysis_id"`
	MainURL     string         `db:"main_url"`
	Competitors pq.StringArray `db:"competitors"`
	Status      string         `db:"status"`
	Progress    int            `db:"progress"`
	Results     types.JSONText `db:"results"`
	ReportPath  sql.NullString `db:"report_path"`
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}
