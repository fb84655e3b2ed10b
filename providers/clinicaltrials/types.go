// Package clinicaltrials enthält die Logik für die Interaktion mit der
// ClinicalTrials.gov API v2.
package clinicaltrials

import (
	"neuro-harvest/providers/fieldparse"
)

// StudiesResponse repräsentiert eine Ergebnisseite der /studies-Abfrage.
// NextPageToken ist leer, wenn keine weitere Seite existiert.
type StudiesResponse struct {
	Studies       []Study `json:"studies"`
	NextPageToken string  `json:"nextPageToken"`
}

// Study repräsentiert eine einzelne Studie im protocolSection-Format.
type Study struct {
	ProtocolSection ProtocolSection `json:"protocolSection"`
}

// ProtocolSection bündelt die Module, die wir aus der API lesen.
type ProtocolSection struct {
	Identification IdentificationModule `json:"identificationModule"`
	Status         StatusModule         `json:"statusModule"`
	Description    DescriptionModule    `json:"descriptionModule"`
	Design         DesignModule         `json:"designModule"`
	Conditions     ConditionsModule     `json:"conditionsModule"`
	Sponsor        SponsorModule        `json:"sponsorCollaboratorsModule"`
	ArmsInterventions ArmsInterventionsModule `json:"armsInterventionsModule"`
}

// IdentificationModule trägt NCT-ID und Titel.
type IdentificationModule struct {
	NCTID         string `json:"nctId"`
	BriefTitle    string `json:"briefTitle"`
	OfficialTitle string `json:"officialTitle"`
}

// StatusModule trägt Status und Datumsangaben. Die Datumsfelder kommen als
// Struct mit "date"-Feld oder (bei älteren Einträgen) als nackter String.
type StatusModule struct {
	OverallStatus      string     `json:"overallStatus"`
	StartDate          DateStruct `json:"startDateStruct"`
	CompletionDate     DateStruct `json:"completionDateStruct"`
	LastUpdatePostDate DateStruct `json:"lastUpdatePostDateStruct"`
}

// DateStruct ist ein partielles Datum ("2024", "2024-03", "2024-03-15").
type DateStruct struct {
	Date string `json:"date"`
}

// DescriptionModule trägt die Kurzbeschreibung der Studie.
type DescriptionModule struct {
	BriefSummary string `json:"briefSummary"`
}

// DesignModule trägt Phasen und Studientyp. Phases ist in der API mal Array,
// mal einzelner String.
type DesignModule struct {
	Phases    fieldparse.OneOrMany[string] `json:"phases"`
	StudyType string                       `json:"studyType"`
}

// ConditionsModule trägt die untersuchten Erkrankungen.
type ConditionsModule struct {
	Conditions fieldparse.OneOrMany[string] `json:"conditions"`
}

// SponsorModule trägt den Hauptsponsor.
type SponsorModule struct {
	LeadSponsor struct {
		Name string `json:"name"`
	} `json:"leadSponsor"`
}

// ArmsInterventionsModule trägt die Interventionen der Studie.
type ArmsInterventionsModule struct {
	Interventions fieldparse.OneOrMany[InterventionEntry] `json:"interventions"`
}

// InterventionEntry ist eine einzelne Intervention (Typ z.B. DRUG, BIOLOGICAL).
type InterventionEntry struct {
	Type string `json:"type"`
	Name string `json:"name"`
}
