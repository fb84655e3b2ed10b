package models

import "time"

// Status-Werte eines FetchRun. "running" ist der einzige nicht-terminale Zustand.
const (
	RunStatusRunning = "running"
	RunStatusOK      = "ok"
	RunStatusError   = "error"
)

// FetchRun protokolliert einen einzelnen Harvest-Versuch pro Quelle. Der Record
// wird beim Start angelegt und genau einmal finalisiert (Erfolg oder Fehler);
// er dient als Audit-Trail, nicht als Korrektheitsgrundlage.
type FetchRun struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SourceID   uint       `json:"source_id" gorm:"index;not null"`
	StartedAt  time.Time  `json:"started_at" gorm:"not null"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	Status       string `json:"status" gorm:"index;default:'running'"`
	NewCount     int    `json:"new_count"`
	UpdatedCount int    `json:"updated_count"`
	SkippedCount int    `json:"skipped_count"`
	ErrorMessage string `json:"error_message,omitempty" gorm:"type:text"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (FetchRun) TableName() string {
	return "fetch_runs"
}
