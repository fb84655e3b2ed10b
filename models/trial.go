package models

import "time"

// AbandonedStatuses sind Trial-Status, die auf abgebrochene Studien hindeuten.
var AbandonedStatuses = map[string]bool{
	"TERMINATED": true,
	"WITHDRAWN":  true,
	"SUSPENDED":  true,
}

// Trial repräsentiert einen normalisierten Registry-Record von ClinicalTrials.gov.
// Idempotenz-Schlüssel ist (source_id, nct_id).
type Trial struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SourceID uint   `json:"source_id" gorm:"uniqueIndex:idx_trials_source_nct;not null"`
	NCTID    string `json:"nct_id" gorm:"column:nct_id;uniqueIndex:idx_trials_source_nct;size:32;not null"`

	Title        string `json:"title" gorm:"not null"`
	BriefSummary string `json:"brief_summary,omitempty" gorm:"type:text"`

	Status     string `json:"status,omitempty" gorm:"index"`
	Phase      string `json:"phase,omitempty"`
	StudyType  string `json:"study_type,omitempty"`
	Conditions string `json:"conditions,omitempty" gorm:"type:text"`
	Sponsor    string `json:"sponsor,omitempty"`

	StartDate      *time.Time `json:"start_date,omitempty"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	URL            string     `json:"url,omitempty"`

	// Interventionen werden vom Upsert-Engine separat dedupliziert und verknüpft.
	Interventions []Intervention `json:"interventions,omitempty" gorm:"-"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Trial) TableName() string {
	return "trials"
}

// ExternalKey implementiert HarvestRecord.
func (t *Trial) ExternalKey() string {
	return t.NCTID
}

// Abandoned meldet, ob der Trial-Status auf eine abgebrochene Studie hindeutet.
func (t *Trial) Abandoned() bool {
	return AbandonedStatuses[t.Status]
}
