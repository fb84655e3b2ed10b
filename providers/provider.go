package providers

import (
	"context"
	"fmt"
	"time"

	"neuro-harvest/models"
)

// SearchWindow begrenzt das Fetch-Fenster eines Harvest-Laufs. Since ist die
// Wassermarke der Quelle; nil bedeutet unbegrenztes Fenster (erster Lauf).
type SearchWindow struct {
	Since *time.Time
	Until time.Time
}

// Page ist das Ergebnis eines einzelnen Seitenabrufs.
type Page struct {
	Records []models.HarvestRecord
	// NextToken ist das opake Fortsetzungstoken der Quelle; leer heißt letzte Seite.
	NextToken string
	// Skipped zählt Roh-Payloads, die mangels externem Identifier verworfen wurden.
	Skipped int
}

// Provider ist das Interface, das jeder Harvest-Provider (PubMed, ClinicalTrials,
// Europe PMC) implementieren muss.
type Provider interface {
	// Name gibt den eindeutigen Quellen-Namen zurück (z.B. "pubmed").
	Name() string

	// FetchPage holt genau eine Ergebnisseite für den Suchausdruck. Beim ersten
	// Aufruf ist pageToken leer. FetchPage wiederholt fehlgeschlagene Aufrufe
	// nicht selbst; Retry-Politik liegt beim Aufrufer.
	FetchPage(ctx context.Context, term string, window SearchWindow, pageToken string) (*Page, error)
}

// TransportError signalisiert einen Netzwerk-/HTTP-Fehler oder einen nicht
// dekodierbaren Response-Body. Er ist fatal für den laufenden Lauf; die
// Wassermarke bleibt unberührt, damit der nächste Lauf dasselbe Fenster
// erneut abdeckt.
type TransportError struct {
	Provider string
	Status   int
	Err      error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: transport error: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Provider, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
