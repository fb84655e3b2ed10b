package models

import "time"

// ArticleScore speichert die berechnete Gesamtbewertung eines Artikels
// (Tag-Gewichte + Aktualität + Keyword-Bonus).
type ArticleScore struct {
	ArticleID  uint      `json:"article_id" gorm:"primaryKey"`
	TotalScore float64   `json:"total_score" gorm:"not null;default:0"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (ArticleScore) TableName() string {
	return "article_scores"
}
