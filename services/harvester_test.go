package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neuro-harvest/config"
	"neuro-harvest/models"
	"neuro-harvest/providers"
)

// fakeProvider liefert pro FetchPage-Aufruf das nächste Skript-Element:
// entweder eine Seite oder einen Fehler.
type fakeProvider struct {
	name    string
	script  []fakeResult
	calls   int
	windows []providers.SearchWindow
	tokens  []string
}

type fakeResult struct {
	page *providers.Page
	err  error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) FetchPage(ctx context.Context, term string, window providers.SearchWindow, pageToken string) (*providers.Page, error) {
	f.windows = append(f.windows, window)
	f.tokens = append(f.tokens, pageToken)
	idx := f.calls
	f.calls++
	if idx >= len(f.script) {
		idx = len(f.script) - 1
	}
	res := f.script[idx]
	return res.page, res.err
}

type finishedRun struct {
	status                          string
	newCount, updatedCount, skipped int
	errMsg                          string
}

// fakeStore implementiert das Store-Interface in-memory.
type fakeStore struct {
	sourceID  uint
	queries   []models.SearchQuery
	watermark *time.Time

	setWatermarks []time.Time
	startedRuns   int
	finished      []finishedRun

	// upsert steuert das Verhalten pro Record; Default ist "neu eingefügt".
	upsert func(rec models.HarvestRecord) (bool, error)
}

func (s *fakeStore) SourceID(name string) (uint, error) { return s.sourceID, nil }

func (s *fakeStore) QueriesForSource(name string) ([]models.SearchQuery, error) {
	return s.queries, nil
}

func (s *fakeStore) Watermark(sourceID uint) (*time.Time, error) { return s.watermark, nil }

func (s *fakeStore) SetWatermark(sourceID uint, t time.Time) error {
	s.setWatermarks = append(s.setWatermarks, t)
	return nil
}

func (s *fakeStore) StartRun(sourceID uint) (*models.FetchRun, error) {
	s.startedRuns++
	return &models.FetchRun{ID: uint(s.startedRuns), SourceID: sourceID, Status: models.RunStatusRunning}, nil
}

func (s *fakeStore) FinishRun(run *models.FetchRun, status string, newCount, updatedCount, skippedCount int, errMsg string) error {
	s.finished = append(s.finished, finishedRun{status, newCount, updatedCount, skippedCount, errMsg})
	return nil
}

func (s *fakeStore) Upsert(sourceID uint, rec models.HarvestRecord) (bool, error) {
	if s.upsert != nil {
		return s.upsert(rec)
	}
	return true, nil
}

func testHarvesterConfig() *config.Config {
	return &config.Config{
		PageSize:       50,
		MaxPages:       4,
		FetchRetries:   1,
		RequestsPerSec: 1000,
	}
}

func article(id string) *models.Article {
	return &models.Article{ExternalID: id, Title: "t"}
}

func singleQuery() []models.SearchQuery {
	return []models.SearchQuery{{SourceName: "fake", Name: "Q", Term: "term"}}
}

func TestRunSourceSuccessAdvancesWatermark(t *testing.T) {
	p := &fakeProvider{name: "fake", script: []fakeResult{
		{page: &providers.Page{
			Records:   []models.HarvestRecord{article("1"), article("2")},
			NextToken: "next",
			Skipped:   1,
		}},
		{page: &providers.Page{
			Records: []models.HarvestRecord{article("3")},
		}},
	}}

	known := map[string]bool{"2": true}
	store := &fakeStore{sourceID: 7, queries: singleQuery(), upsert: func(rec models.HarvestRecord) (bool, error) {
		return !known[rec.ExternalKey()], nil
	}}

	h := NewHarvester(testHarvesterConfig(), zap.NewNop(), store, []providers.Provider{p})
	before := time.Now()
	require.NoError(t, h.RunSource(context.Background(), p))

	// Zwei Seiten: erst ohne Token, dann mit dem Fortsetzungstoken.
	assert.Equal(t, []string{"", "next"}, p.tokens)

	require.Len(t, store.finished, 1)
	fin := store.finished[0]
	assert.Equal(t, models.RunStatusOK, fin.status)
	assert.Equal(t, 2, fin.newCount)
	assert.Equal(t, 1, fin.updatedCount)
	assert.Equal(t, 1, fin.skipped)

	require.Len(t, store.setWatermarks, 1)
	wm := store.setWatermarks[0]
	assert.False(t, wm.Before(before.Add(-time.Second)))
	assert.False(t, wm.After(time.Now()))
}

func TestRunSourceFirstRunHasOpenWindow(t *testing.T) {
	p := &fakeProvider{name: "fake", script: []fakeResult{
		{page: &providers.Page{}},
	}}
	store := &fakeStore{sourceID: 1, queries: singleQuery()}

	h := NewHarvester(testHarvesterConfig(), zap.NewNop(), store, []providers.Provider{p})
	require.NoError(t, h.RunSource(context.Background(), p))

	require.Len(t, p.windows, 1)
	// Ohne Wassermarke gibt es keine untere Fenstergrenze.
	assert.Nil(t, p.windows[0].Since)
}

func TestRunSourceFailureKeepsWatermark(t *testing.T) {
	p := &fakeProvider{name: "fake", script: []fakeResult{
		{err: &providers.TransportError{Provider: "fake", Status: 503}},
	}}
	store := &fakeStore{sourceID: 1, queries: singleQuery()}

	h := NewHarvester(testHarvesterConfig(), zap.NewNop(), store, []providers.Provider{p})
	err := h.RunSource(context.Background(), p)
	require.Error(t, err)

	// Transportfehler werden retried: Erstversuch plus FetchRetries.
	assert.Equal(t, 2, p.calls)

	// Lauf ist als Fehler finalisiert, die Wassermarke bleibt unberührt.
	require.Len(t, store.finished, 1)
	assert.Equal(t, models.RunStatusError, store.finished[0].status)
	assert.NotEmpty(t, store.finished[0].errMsg)
	assert.Empty(t, store.setWatermarks)
}

func TestRunSourceFailureOnSecondPage(t *testing.T) {
	p := &fakeProvider{name: "fake", script: []fakeResult{
		{page: &providers.Page{
			Records:   []models.HarvestRecord{article("1")},
			NextToken: "next",
		}},
		{err: &providers.TransportError{Provider: "fake", Status: 500}},
	}}
	store := &fakeStore{sourceID: 1, queries: singleQuery()}

	h := NewHarvester(testHarvesterConfig(), zap.NewNop(), store, []providers.Provider{p})
	require.Error(t, h.RunSource(context.Background(), p))

	// Teilfortschritt landet in den Zählern des Fehl-Laufs.
	require.Len(t, store.finished, 1)
	assert.Equal(t, models.RunStatusError, store.finished[0].status)
	assert.Equal(t, 1, store.finished[0].newCount)
	assert.Empty(t, store.setWatermarks)
}

func TestRunSourceNonTransportErrorNotRetried(t *testing.T) {
	p := &fakeProvider{name: "fake", script: []fakeResult{
		{err: fmt.Errorf("ungültiges page token")},
	}}
	store := &fakeStore{sourceID: 1, queries: singleQuery()}

	h := NewHarvester(testHarvesterConfig(), zap.NewNop(), store, []providers.Provider{p})
	require.Error(t, h.RunSource(context.Background(), p))
	assert.Equal(t, 1, p.calls)
}

func TestRunSourcePageCeiling(t *testing.T) {
	// Die Quelle meldet endlos weitere Seiten; die Obergrenze beendet die Query.
	p := &fakeProvider{name: "fake", script: []fakeResult{
		{page: &providers.Page{
			Records:   []models.HarvestRecord{article("x")},
			NextToken: "more",
		}},
	}}
	store := &fakeStore{sourceID: 1, queries: singleQuery()}

	cfg := testHarvesterConfig()
	cfg.MaxPages = 3
	h := NewHarvester(cfg, zap.NewNop(), store, []providers.Provider{p})
	require.NoError(t, h.RunSource(context.Background(), p))

	assert.Equal(t, 3, p.calls)
	require.Len(t, store.finished, 1)
	assert.Equal(t, models.RunStatusOK, store.finished[0].status)
	// Der abgeschnittene Lauf zählt trotzdem als Erfolg und schreibt die Marke fort.
	assert.Len(t, store.setWatermarks, 1)
}

func TestRunSourceRecordFailureIsIsolated(t *testing.T) {
	p := &fakeProvider{name: "fake", script: []fakeResult{
		{page: &providers.Page{
			Records: []models.HarvestRecord{article("ok-1"), article("broken"), article("ok-2")},
		}},
	}}
	store := &fakeStore{sourceID: 1, queries: singleQuery(), upsert: func(rec models.HarvestRecord) (bool, error) {
		if rec.ExternalKey() == "broken" {
			return false, errors.New("constraint violation")
		}
		return true, nil
	}}

	h := NewHarvester(testHarvesterConfig(), zap.NewNop(), store, []providers.Provider{p})
	require.NoError(t, h.RunSource(context.Background(), p))

	require.Len(t, store.finished, 1)
	fin := store.finished[0]
	assert.Equal(t, models.RunStatusOK, fin.status)
	assert.Equal(t, 2, fin.newCount)
	assert.Equal(t, 1, fin.skipped)
	assert.Len(t, store.setWatermarks, 1)
}

func TestRunSourceDeadStoreFailsRun(t *testing.T) {
	// Schlägt jeder Upsert fehl, ist die Verbindung tot: der Lauf darf nicht
	// als Erfolg enden und die Wassermarke nicht fortschreiben.
	p := &fakeProvider{name: "fake", script: []fakeResult{
		{page: &providers.Page{
			Records: []models.HarvestRecord{article("1"), article("2"), article("3")},
		}},
	}}
	store := &fakeStore{sourceID: 1, queries: singleQuery(), upsert: func(rec models.HarvestRecord) (bool, error) {
		return false, errors.New("dial tcp 127.0.0.1:5432: connection refused")
	}}

	h := NewHarvester(testHarvesterConfig(), zap.NewNop(), store, []providers.Provider{p})
	err := h.RunSource(context.Background(), p)
	require.Error(t, err)

	require.Len(t, store.finished, 1)
	assert.Equal(t, models.RunStatusError, store.finished[0].status)
	assert.Equal(t, 3, store.finished[0].skipped)
	assert.Zero(t, store.finished[0].newCount)
	assert.Empty(t, store.setWatermarks)
}

func TestRunSourceScatteredUpsertFailuresStayIsolated(t *testing.T) {
	// Einzelfehler mit Erfolgen dazwischen setzen den Fehlerzähler zurück;
	// der Lauf bleibt ein Erfolg.
	p := &fakeProvider{name: "fake", script: []fakeResult{
		{page: &providers.Page{
			Records: []models.HarvestRecord{
				article("bad-1"), article("bad-2"), article("ok-1"),
				article("bad-3"), article("bad-4"), article("ok-2"),
			},
		}},
	}}
	store := &fakeStore{sourceID: 1, queries: singleQuery(), upsert: func(rec models.HarvestRecord) (bool, error) {
		if rec.ExternalKey()[:2] == "ba" {
			return false, errors.New("constraint violation")
		}
		return true, nil
	}}

	h := NewHarvester(testHarvesterConfig(), zap.NewNop(), store, []providers.Provider{p})
	require.NoError(t, h.RunSource(context.Background(), p))

	require.Len(t, store.finished, 1)
	fin := store.finished[0]
	assert.Equal(t, models.RunStatusOK, fin.status)
	assert.Equal(t, 2, fin.newCount)
	assert.Equal(t, 4, fin.skipped)
	assert.Len(t, store.setWatermarks, 1)
}

func TestRunSourceWithoutQueriesSkips(t *testing.T) {
	p := &fakeProvider{name: "fake", script: []fakeResult{{page: &providers.Page{}}}}
	store := &fakeStore{sourceID: 1}

	h := NewHarvester(testHarvesterConfig(), zap.NewNop(), store, []providers.Provider{p})
	require.NoError(t, h.RunSource(context.Background(), p))

	assert.Zero(t, p.calls)
	assert.Zero(t, store.startedRuns)
}

func TestRunSourceByNameUnknownProvider(t *testing.T) {
	h := NewHarvester(testHarvesterConfig(), zap.NewNop(), &fakeStore{}, nil)
	err := h.RunSourceByName(context.Background(), "nope")
	require.Error(t, err)
}
