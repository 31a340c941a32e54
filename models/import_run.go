package models

import "time"

const (
	ImportRunStatusQueued  = "queued"
	ImportRunStatusRunning = "running"
	ImportRunStatusSuccess = "success"
	ImportRunStatusFailed  = "failed"
	ImportRunStatusPartial = "partial"
)

const (
	ImportTriggeredManual = "manual"
	ImportTriggeredRetry  = "retry"
	ImportTriggeredSystem = "system"
)

// MaxPersistedRunErrors bounds per-item error rows stored for one run so a
// large broken feed cannot grow the table without limit.
const MaxPersistedRunErrors = 50

type ImportRun struct {
	ID          uint       `gorm:"primary_key" json:"id"`
	Source      string     `gorm:"index;size:50;not null" json:"source"`
	AgencyId    int        `gorm:"index" json:"agency_id"`
	Status      string     `gorm:"size:20;not null" json:"status"`
	TriggeredBy string     `gorm:"size:20" json:"triggered_by"`
	Imported    int        `json:"imported"`
	Updated     int        `json:"updated"`
	Removed     int        `json:"removed"`
	Skipped     int        `json:"skipped"`
	Total       int        `json:"total"`
	ErrorCount  int        `json:"error_count"`
	StatsJSON   []byte     `gorm:"type:json" json:"stats"`
	ParentRunId *uint      `gorm:"index" json:"parent_run_id"`
	StartedAt   *time.Time `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at"`
	DurationMs  int64      `json:"duration_ms"`
	CreatedAt   time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

type ImportRunError struct {
	ID          uint      `gorm:"primary_key" json:"id"`
	ImportRunId uint      `gorm:"index;not null" json:"import_run_id"`
	ExternalId  string    `gorm:"size:128" json:"external_id"`
	ErrorCode   string    `gorm:"size:64" json:"error_code"`
	Message     string    `gorm:"type:text" json:"message"`
	PayloadJSON []byte    `gorm:"type:json" json:"payload"`
	Retryable   bool      `gorm:"default:false" json:"retryable"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
