package models

import (
	"time"

	"gorm.io/datatypes"
)

// Article repräsentiert einen normalisierten Literatur-Record (PubMed, Europe PMC).
// Idempotenz-Schlüssel ist (source_id, external_id); per Re-Harvest werden Felder
// überschrieben bzw. koalesziert, nie gelöscht.
type Article struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SourceID   uint   `json:"source_id" gorm:"uniqueIndex:idx_articles_source_external;not null"`
	ExternalID string `json:"external_id" gorm:"uniqueIndex:idx_articles_source_external;size:128;not null"`

	DOI      string `json:"doi,omitempty" gorm:"column:doi;index"`
	Title    string `json:"title" gorm:"not null"`
	Abstract string `json:"abstract,omitempty" gorm:"type:text"`
	Journal  string `json:"journal,omitempty"`

	PublicationDate *time.Time `json:"publication_date,omitempty"`
	URL             string     `json:"url,omitempty"`

	Keywords  datatypes.JSON `json:"keywords,omitempty" gorm:"type:jsonb"`
	MeshTerms datatypes.JSON `json:"mesh_terms,omitempty" gorm:"type:jsonb"`

	// Autoren werden vom Upsert-Engine separat dedupliziert und verknüpft.
	Authors []string `json:"authors,omitempty" gorm:"-"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Article) TableName() string {
	return "articles"
}

// ExternalKey implementiert HarvestRecord.
func (a *Article) ExternalKey() string {
	return a.ExternalID
}
