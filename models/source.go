package models

// Source repräsentiert einen externen Datenanbieter (z.B. "pubmed", "clinicaltrials").
type Source struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	Name    string `json:"name" gorm:"uniqueIndex;not null"`
	BaseURL string `json:"base_url"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Source) TableName() string {
	return "sources"
}
