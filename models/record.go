package models

// HarvestRecord ist die gemeinsame Schnittstelle der kanonischen Record-Varianten
// (Article, Trial). Der externe Identifier ist das einzige Pflichtfeld: Records
// ohne ihn werden vor der Persistierung verworfen.
type HarvestRecord interface {
	// ExternalKey gibt den quellenstabilen Identifier zurück (PMID bzw. NCT-ID).
	ExternalKey() string
}
