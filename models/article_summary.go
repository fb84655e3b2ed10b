package models

import (
	"time"

	"gorm.io/datatypes"
)

// ArticleSummary speichert das KI-Analyseergebnis für einen Artikel:
// Laien- und Fach-Zusammenfassung plus strukturierte Signale als JSON.
type ArticleSummary struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	ArticleID uint   `json:"article_id" gorm:"uniqueIndex;not null"`
	Model     string `json:"model,omitempty"`

	PlainSummary     string         `json:"plain_summary,omitempty" gorm:"type:text"`
	TechnicalSummary string         `json:"technical_summary,omitempty" gorm:"type:text"`
	Signals          datatypes.JSON `json:"signals,omitempty" gorm:"type:jsonb"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (ArticleSummary) TableName() string {
	return "article_summaries"
}
