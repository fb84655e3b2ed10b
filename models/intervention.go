package models

// Intervention ist eine über alle Trials deduplizierte Intervention (Wirkstoff,
// Biologikum etc.). Natürlicher Schlüssel ist der Name; der Typ stammt aus der
// ersten Sichtung.
type Intervention struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;size:512;not null"`
	Type string `json:"type,omitempty"` // z.B. DRUG, BIOLOGICAL, DIETARY_SUPPLEMENT
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Intervention) TableName() string {
	return "interventions"
}

// TrialIntervention verknüpft Trial und Intervention; doppelte Verknüpfung ist ein No-op.
type TrialIntervention struct {
	ID             uint `json:"id" gorm:"primaryKey"`
	TrialID        uint `json:"trial_id" gorm:"uniqueIndex:idx_trial_interventions_edge;not null"`
	InterventionID uint `json:"intervention_id" gorm:"uniqueIndex:idx_trial_interventions_edge;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (TrialIntervention) TableName() string {
	return "trial_interventions"
}
