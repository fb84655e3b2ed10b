// Package services enthält die Fachlogik oberhalb von Providern und Storage:
// den Harvest-Koordinator, Tagger, Scorer und Summarizer.
package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"neuro-harvest/config"
	"neuro-harvest/models"
	"neuro-harvest/providers"
)

var (
	harvestRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_runs_total",
		Help: "Anzahl abgeschlossener Harvest-Läufe pro Quelle und Endstatus.",
	}, []string{"source", "status"})

	harvestRecordsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_records_total",
		Help: "Anzahl verarbeiteter Records pro Quelle und Ergebnis.",
	}, []string{"source", "outcome"})

	harvestPagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvest_pages_total",
		Help: "Anzahl geholter Ergebnisseiten pro Quelle.",
	}, []string{"source"})
)

// Store ist die Persistenz-Schnittstelle des Harvesters. Sie ist bewusst
// schmal gehalten, damit Tests mit einem Fake-Store auskommen.
type Store interface {
	SourceID(name string) (uint, error)
	QueriesForSource(name string) ([]models.SearchQuery, error)
	Watermark(sourceID uint) (*time.Time, error)
	SetWatermark(sourceID uint, t time.Time) error
	StartRun(sourceID uint) (*models.FetchRun, error)
	FinishRun(run *models.FetchRun, status string, newCount, updatedCount, skippedCount int, errMsg string) error
	Upsert(sourceID uint, record models.HarvestRecord) (bool, error)
}

// Harvester koordiniert die Läufe über alle registrierten Provider: Fenster
// aus der Wassermarke ableiten, Seiten mit Retry holen, Records isoliert
// upserten und den Lauf genau einmal finalisieren.
type Harvester struct {
	Config    *config.Config
	Logger    *zap.Logger
	Store     Store
	Providers []providers.Provider

	limiter *rate.Limiter
}

// NewHarvester erstellt eine neue Harvester-Instanz. Der Rate-Limiter gilt
// global über alle Provider, damit wir die Upstream-APIs nicht fluten.
func NewHarvester(cfg *config.Config, logger *zap.Logger, store Store, provs []providers.Provider) *Harvester {
	return &Harvester{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Providers: provs,
		limiter:   rate.NewLimiter(rate.Limit(cfg.RequestsPerSec), 1),
	}
}

// RunAll führt für jeden Provider einen Lauf durch, nebenläufig pro Quelle.
// Fehler einzelner Quellen beeinflussen die übrigen nicht.
func (h *Harvester) RunAll(ctx context.Context) {
	var wg sync.WaitGroup
	for _, p := range h.Providers {
		wg.Add(1)
		go func(p providers.Provider) {
			defer wg.Done()
			if err := h.RunSource(ctx, p); err != nil {
				h.Logger.Error("Harvest-Lauf fehlgeschlagen",
					zap.String("source", p.Name()), zap.Error(err))
			}
		}(p)
	}
	wg.Wait()
}

// RunSourceByName führt einen Lauf für genau eine Quelle durch.
func (h *Harvester) RunSourceByName(ctx context.Context, name string) error {
	for _, p := range h.Providers {
		if p.Name() == name {
			return h.RunSource(ctx, p)
		}
	}
	return fmt.Errorf("provider %q ist nicht aktiviert", name)
}

// RunSource führt den Zustandsautomaten eines Laufs aus:
// Initialisierung (Fenster + Run-Record), Fetch/Persist pro Query, dann genau
// eine Finalisierung. Die Wassermarke wird ausschließlich im Erfolgsfall
// fortgeschrieben; nach einem Fehlschlag deckt der nächste Lauf dasselbe
// Fenster erneut ab.
func (h *Harvester) RunSource(ctx context.Context, p providers.Provider) error {
	log := h.Logger.With(zap.String("source", p.Name()))

	sourceID, err := h.Store.SourceID(p.Name())
	if err != nil {
		return err
	}
	queries, err := h.Store.QueriesForSource(p.Name())
	if err != nil {
		return err
	}
	if len(queries) == 0 {
		log.Warn("keine Suchstrategien konfiguriert, Lauf übersprungen")
		return nil
	}

	since, err := h.Store.Watermark(sourceID)
	if err != nil {
		return err
	}
	window := providers.SearchWindow{Since: since, Until: time.Now()}

	run, err := h.Store.StartRun(sourceID)
	if err != nil {
		return err
	}
	log.Info("Harvest-Lauf gestartet",
		zap.Uint("run_id", run.ID), zap.Int("queries", len(queries)))

	var newCount, updatedCount, skippedCount int
	var runErr error
	for _, q := range queries {
		n, u, s, err := h.harvestQuery(ctx, p, sourceID, q.Term, window)
		newCount += n
		updatedCount += u
		skippedCount += s
		if err != nil {
			runErr = fmt.Errorf("query %q: %w", q.Name, err)
			break
		}
	}

	if runErr != nil {
		harvestRunsTotal.WithLabelValues(p.Name(), models.RunStatusError).Inc()
		if err := h.Store.FinishRun(run, models.RunStatusError, newCount, updatedCount, skippedCount, runErr.Error()); err != nil {
			log.Error("Run-Finalisierung fehlgeschlagen", zap.Error(err))
		}
		return runErr
	}

	if err := h.Store.FinishRun(run, models.RunStatusOK, newCount, updatedCount, skippedCount, ""); err != nil {
		return err
	}
	// Erst nach erfolgreicher Finalisierung fortschreiben; window.Until ist der
	// Startzeitpunkt des Laufs, damit während des Laufs publizierte Records
	// nicht in eine Lücke fallen.
	if err := h.Store.SetWatermark(sourceID, window.Until); err != nil {
		return err
	}

	harvestRunsTotal.WithLabelValues(p.Name(), models.RunStatusOK).Inc()
	log.Info("Harvest-Lauf abgeschlossen",
		zap.Int("new", newCount), zap.Int("updated", updatedCount), zap.Int("skipped", skippedCount))
	return nil
}

// maxConsecutiveUpsertFailures trennt kaputte Einzel-Records von einer toten
// Store-Verbindung: reißt die Fehlerkette nicht ab, persistiert der Lauf
// offensichtlich gar nichts mehr und muss fehlschlagen, damit die Wassermarke
// stehen bleibt und das Fenster erneut abgedeckt wird.
const maxConsecutiveUpsertFailures = 3

// harvestQuery verarbeitet eine Suchstrategie Seite für Seite, bis die Quelle
// kein Fortsetzungstoken mehr liefert oder die Seitenobergrenze erreicht ist.
// Fehler einzelner Records werden gezählt und übersprungen; Fehler einer
// ganzen Seite sowie Serien-Persistenzfehler brechen die Query ab.
func (h *Harvester) harvestQuery(ctx context.Context, p providers.Provider, sourceID uint, term string, window providers.SearchWindow) (newCount, updatedCount, skippedCount int, err error) {
	log := h.Logger.With(zap.String("source", p.Name()), zap.String("term", term))

	token := ""
	consecutiveFailures := 0
	for pageNum := 0; pageNum < h.Config.MaxPages; pageNum++ {
		if err := h.limiter.Wait(ctx); err != nil {
			return newCount, updatedCount, skippedCount, err
		}

		page, err := h.fetchWithRetry(ctx, p, term, window, token)
		if err != nil {
			return newCount, updatedCount, skippedCount, err
		}
		harvestPagesTotal.WithLabelValues(p.Name()).Inc()
		skippedCount += page.Skipped

		for _, record := range page.Records {
			inserted, err := h.Store.Upsert(sourceID, record)
			if err != nil {
				log.Warn("Record übersprungen",
					zap.String("external_key", record.ExternalKey()), zap.Error(err))
				harvestRecordsTotal.WithLabelValues(p.Name(), "failed").Inc()
				skippedCount++
				consecutiveFailures++
				if consecutiveFailures >= maxConsecutiveUpsertFailures {
					return newCount, updatedCount, skippedCount,
						fmt.Errorf("persistenz ausgefallen, %d Upserts in Folge fehlgeschlagen: %w", consecutiveFailures, err)
				}
				continue
			}
			consecutiveFailures = 0
			if inserted {
				harvestRecordsTotal.WithLabelValues(p.Name(), "new").Inc()
				newCount++
			} else {
				harvestRecordsTotal.WithLabelValues(p.Name(), "updated").Inc()
				updatedCount++
			}
		}

		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}
	return newCount, updatedCount, skippedCount, nil
}

// fetchWithRetry holt eine Seite und wiederholt ausschließlich bei
// Transportfehlern, mit exponentiellem Backoff. Parse- und Tokenfehler sind
// nicht transient und werden sofort durchgereicht.
func (h *Harvester) fetchWithRetry(ctx context.Context, p providers.Provider, term string, window providers.SearchWindow, token string) (*providers.Page, error) {
	var lastErr error
	for attempt := 0; attempt <= h.Config.FetchRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			h.Logger.Warn("Transportfehler, neuer Versuch",
				zap.String("source", p.Name()), zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		page, err := p.FetchPage(ctx, term, window, token)
		if err == nil {
			return page, nil
		}
		var transportErr *providers.TransportError
		if !errors.As(err, &transportErr) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
