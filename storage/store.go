// Package storage kapselt sämtliche Datenbankzugriffe: Quellen- und
// Query-Verwaltung, Wassermarken, Run-Protokolle und den idempotenten Upsert
// der kanonischen Records.
package storage

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"neuro-harvest/models"
	"neuro-harvest/providers/fieldparse"
)

// Store bündelt alle persistenten Operationen auf einer GORM-Verbindung.
type Store struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewStore erstellt eine neue Store-Instanz.
func NewStore(db *gorm.DB, logger *zap.Logger) *Store {
	return &Store{DB: db, Logger: logger}
}

// SourceID löst einen Quellennamen in die Datenbank-ID auf. Eine unbekannte
// Quelle ist ein Konfigurationsfehler und wird nicht implizit angelegt.
func (s *Store) SourceID(name string) (uint, error) {
	var source models.Source
	if err := s.DB.Where("name = ?", name).First(&source).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("quelle %q ist nicht registriert", name)
		}
		return 0, err
	}
	return source.ID, nil
}

// QueriesForSource gibt die konfigurierten Suchstrategien einer Quelle zurück.
func (s *Store) QueriesForSource(name string) ([]models.SearchQuery, error) {
	var queries []models.SearchQuery
	if err := s.DB.Where("source_name = ?", name).Order("name").Find(&queries).Error; err != nil {
		return nil, err
	}
	return queries, nil
}

// Watermark gibt den Zeitpunkt des letzten erfolgreichen Laufs einer Quelle
// zurück, oder nil wenn die Quelle noch nie erfolgreich gelaufen ist.
func (s *Store) Watermark(sourceID uint) (*time.Time, error) {
	var state models.ScannerState
	if err := s.DB.Where("source_id = ?", sourceID).First(&state).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &state.LastRun, nil
}

// SetWatermark schreibt die Wassermarke einer Quelle fort. Der Aufruf ist
// idempotent; pro Quelle existiert genau eine Zeile.
func (s *Store) SetWatermark(sourceID uint, t time.Time) error {
	state := models.ScannerState{SourceID: sourceID, LastRun: t}
	return s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "source_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"last_run": t}),
	}).Create(&state).Error
}

// StartRun legt einen neuen FetchRun im Status "running" an.
func (s *Store) StartRun(sourceID uint) (*models.FetchRun, error) {
	run := &models.FetchRun{
		SourceID:  sourceID,
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if err := s.DB.Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRun finalisiert einen Lauf genau einmal mit Endstatus und Zählern.
func (s *Store) FinishRun(run *models.FetchRun, status string, newCount, updatedCount, skippedCount int, errMsg string) error {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = status
	run.NewCount = newCount
	run.UpdatedCount = updatedCount
	run.SkippedCount = skippedCount
	run.ErrorMessage = errMsg
	return s.DB.Model(run).Updates(map[string]interface{}{
		"finished_at":   run.FinishedAt,
		"status":        run.Status,
		"new_count":     run.NewCount,
		"updated_count": run.UpdatedCount,
		"skipped_count": run.SkippedCount,
		"error_message": run.ErrorMessage,
	}).Error
}

// Upsert persistiert einen kanonischen Record idempotent unter seinem
// Quellen-Schlüssel und meldet zurück, ob die Zeile neu eingefügt wurde.
// Record plus Unter-Entitäten laufen in einer Transaktion; ein fehlgeschlagener
// Record lässt die übrigen Records des Laufs unberührt.
func (s *Store) Upsert(sourceID uint, record models.HarvestRecord) (inserted bool, err error) {
	if record == nil || record.ExternalKey() == "" {
		return false, fmt.Errorf("record ohne externen Schlüssel")
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		switch r := record.(type) {
		case *models.Article:
			inserted, err = upsertArticle(tx, sourceID, r)
		case *models.Trial:
			inserted, err = upsertTrial(tx, sourceID, r)
		default:
			err = fmt.Errorf("unbekannter record-typ %T", record)
		}
		return err
	})
	return inserted, err
}

// Die Upsert-Statements folgen der Koaleszenz-Regel: Pflicht- und
// Registry-Felder werden überschrieben, optionale Felder nur gefüllt, nie
// geleert. (xmax = 0) unterscheidet Insert von Update.
const upsertArticleSQL = `
	INSERT INTO articles (
		source_id, external_id, doi, title, abstract, journal,
		publication_date, url, keywords, mesh_terms, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	ON CONFLICT (source_id, external_id) DO UPDATE SET
		title            = EXCLUDED.title,
		url              = EXCLUDED.url,
		doi              = COALESCE(EXCLUDED.doi, articles.doi),
		abstract         = COALESCE(EXCLUDED.abstract, articles.abstract),
		journal          = COALESCE(EXCLUDED.journal, articles.journal),
		publication_date = COALESCE(EXCLUDED.publication_date, articles.publication_date),
		keywords         = COALESCE(EXCLUDED.keywords, articles.keywords),
		mesh_terms       = COALESCE(EXCLUDED.mesh_terms, articles.mesh_terms),
		updated_at       = NOW()
	RETURNING id, (xmax = 0) AS inserted`

const upsertTrialSQL = `
	INSERT INTO trials (
		source_id, nct_id, title, brief_summary, status, phase, study_type,
		conditions, sponsor, start_date, completion_date, url, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
	ON CONFLICT (source_id, nct_id) DO UPDATE SET
		title           = EXCLUDED.title,
		status          = EXCLUDED.status,
		phase           = COALESCE(EXCLUDED.phase, trials.phase),
		study_type      = COALESCE(EXCLUDED.study_type, trials.study_type),
		sponsor         = COALESCE(EXCLUDED.sponsor, trials.sponsor),
		url             = EXCLUDED.url,
		brief_summary   = COALESCE(EXCLUDED.brief_summary, trials.brief_summary),
		conditions      = COALESCE(EXCLUDED.conditions, trials.conditions),
		start_date      = COALESCE(EXCLUDED.start_date, trials.start_date),
		completion_date = COALESCE(EXCLUDED.completion_date, trials.completion_date),
		updated_at      = NOW()
	RETURNING id, (xmax = 0) AS inserted`

// upsertArticle schreibt einen Artikel per ON CONFLICT-Upsert.
func upsertArticle(tx *gorm.DB, sourceID uint, a *models.Article) (bool, error) {
	var (
		id       uint
		inserted bool
	)
	row := tx.Raw(upsertArticleSQL,
		sourceID, a.ExternalID,
		nullStr(a.DOI), a.Title, nullStr(a.Abstract), nullStr(a.Journal),
		a.PublicationDate, a.URL, nullJSON(a.Keywords), nullJSON(a.MeshTerms),
	).Row()
	if err := row.Scan(&id, &inserted); err != nil {
		return false, err
	}
	a.ID = id

	if err := attachAuthors(tx, id, a.Authors); err != nil {
		return false, err
	}
	return inserted, nil
}

// upsertTrial schreibt einen Trial per ON CONFLICT-Upsert. Die Registry liefert
// Status verbindlich, daher wird er überschrieben.
func upsertTrial(tx *gorm.DB, sourceID uint, t *models.Trial) (bool, error) {
	var (
		id       uint
		inserted bool
	)
	row := tx.Raw(upsertTrialSQL,
		sourceID, t.NCTID, t.Title, nullStr(t.BriefSummary), t.Status,
		nullStr(t.Phase), nullStr(t.StudyType), nullStr(t.Conditions),
		nullStr(t.Sponsor), t.StartDate, t.CompletionDate, t.URL,
	).Row()
	if err := row.Scan(&id, &inserted); err != nil {
		return false, err
	}
	t.ID = id

	if err := attachInterventions(tx, id, t.Interventions); err != nil {
		return false, err
	}
	return inserted, nil
}

// canonicalNames normalisiert Namen auf ihren natürlichen Schlüssel und
// dedupliziert sie in Eingabereihenfolge. Persistiert wird der normalisierte
// Name, damit der Unique-Index dieselben Varianten zusammenführt wie die
// Deduplikation hier.
func canonicalNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, name := range names {
		key := fieldparse.NameKey(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// canonicalInterventions normalisiert Interventionsnamen analog zu
// canonicalNames; der Typ der ersten Sichtung gewinnt.
func canonicalInterventions(interventions []models.Intervention) []models.Intervention {
	seen := make(map[string]bool, len(interventions))
	var out []models.Intervention
	for _, iv := range interventions {
		key := fieldparse.NameKey(iv.Name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, models.Intervention{Name: key, Type: iv.Type})
	}
	return out
}

// attachAuthors dedupliziert Autoren über den natürlichen Schlüssel (Name) und
// verknüpft sie mit dem Artikel. Die Benennungs-Upserts sind so geschrieben,
// dass Postgres auch im Konfliktfall die ID zurückliefert.
func attachAuthors(tx *gorm.DB, articleID uint, names []string) error {
	for _, name := range canonicalNames(names) {
		author := models.Author{Name: name}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"name": gorm.Expr("EXCLUDED.name")}),
		}).Create(&author).Error; err != nil {
			return err
		}

		edge := models.ArticleAuthor{ArticleID: articleID, AuthorID: author.ID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
			return err
		}
	}
	return nil
}

// attachInterventions dedupliziert Interventionen über den Namen und verknüpft
// sie mit dem Trial.
func attachInterventions(tx *gorm.DB, trialID uint, interventions []models.Intervention) error {
	for _, iv := range canonicalInterventions(interventions) {
		row := models.Intervention{Name: iv.Name, Type: iv.Type}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"name": gorm.Expr("EXCLUDED.name")}),
		}).Create(&row).Error; err != nil {
			return err
		}

		edge := models.TrialIntervention{TrialID: trialID, InterventionID: row.ID}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
			return err
		}
	}
	return nil
}

// nullStr gibt nil für leere Strings zurück, damit COALESCE im Upsert greift.
func nullStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullJSON gibt nil für leere JSON-Werte zurück, damit COALESCE im Upsert greift.
func nullJSON(j datatypes.JSON) interface{} {
	if len(j) == 0 {
		return nil
	}
	return j
}
