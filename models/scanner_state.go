package models

import "time"

// ScannerState ist die Wassermarke pro Quelle: der Endzeitpunkt des letzten
// erfolgreichen Laufs. Sie begrenzt das Fetch-Fenster des nächsten Laufs und
// wird ausschließlich nach einem erfolgreichen Lauf fortgeschrieben.
type ScannerState struct {
	ID       uint      `json:"id" gorm:"primaryKey"`
	SourceID uint      `json:"source_id" gorm:"uniqueIndex;not null"`
	LastRun  time.Time `json:"last_run" gorm:"not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (ScannerState) TableName() string {
	return "scanner_state"
}
