package models

// SearchQuery repräsentiert eine wiederverwendbare Suchstrategie pro Quelle.
type SearchQuery struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	SourceName string `json:"source_name" gorm:"uniqueIndex:idx_search_queries_source_name;not null"` // z.B. "pubmed"
	Name       string `json:"name" gorm:"uniqueIndex:idx_search_queries_source_name;not null"`        // z.B. "Parkinson"
	Term       string `json:"term" gorm:"type:text;not null"` // Der quellenspezifische Suchausdruck
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (SearchQuery) TableName() string {
	return "search_queries"
}
