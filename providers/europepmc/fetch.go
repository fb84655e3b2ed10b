package europepmc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"neuro-harvest/config"
	"neuro-harvest/models"
	"neuro-harvest/providers"
	"neuro-harvest/providers/fieldparse"
)

// Fetcher implementiert das Provider-Interface für Europe PMC.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *http.Client
}

// NewFetcher erstellt eine neue Instanz des EuropePMC-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config: cfg,
		Logger: logger,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "europepmc"
}

// FetchPage holt eine Ergebnisseite von /search. Das Fortsetzungstoken ist
// das cursorMark der API; die Startseite verwendet "*". Wiederholt die API
// den Cursor der aktuellen Seite, ist die Pagination zu Ende.
func (f *Fetcher) FetchPage(ctx context.Context, term string, window providers.SearchWindow, pageToken string) (*providers.Page, error) {
	log := f.Logger.With(zap.String("term", term), zap.String("page_token", pageToken))

	cursor := pageToken
	if cursor == "" {
		cursor = "*"
	}

	query := term
	if window.Since != nil {
		query = fmt.Sprintf("(%s) AND (FIRST_PDATE:[%s TO %s])",
			term,
			window.Since.Format("2006-01-02"),
			window.Until.Format("2006-01-02"),
		)
	}

	params := url.Values{}
	params.Set("query", query)
	params.Set("format", "json")
	params.Set("resultType", "core")
	params.Set("pageSize", strconv.Itoa(f.Config.PageSize))
	params.Set("cursorMark", cursor)
	params.Set("sort", "P_PDATE_D desc")

	reqURL := fmt.Sprintf("%s/search?%s", f.Config.EuropePMCBaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &providers.TransportError{Provider: "europepmc", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &providers.TransportError{Provider: "europepmc", Status: resp.StatusCode}
	}

	var searchResp SearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&searchResp); err != nil {
		return nil, &providers.TransportError{Provider: "europepmc", Err: err}
	}
	log.Debug("Search-Seite geladen", zap.Int("results", len(searchResp.ResultList.Result)))

	page := &providers.Page{}
	for i := range searchResp.ResultList.Result {
		article := mapResultToModel(&searchResp.ResultList.Result[i])
		if article == nil {
			page.Skipped++
			continue
		}
		page.Records = append(page.Records, article)
	}

	next := searchResp.NextCursorMark
	if next != "" && next != cursor && len(searchResp.ResultList.Result) > 0 {
		page.NextToken = next
	}
	return page, nil
}

// mapResultToModel wandelt einen Europe-PMC-Treffer in unser Article-Modell um.
// Ohne ID gibt es nil zurück; der Payload wird dann als übersprungen gezählt.
func mapResultToModel(raw *Result) *models.Article {
	externalID := strings.TrimSpace(raw.ID)
	if externalID == "" {
		externalID = strings.TrimSpace(raw.PMID)
	}
	if externalID == "" {
		return nil
	}

	title := strings.TrimSpace(raw.Title)
	if title == "" {
		title = fmt.Sprintf("(no title) %s", externalID)
	}

	var authors []string
	for _, a := range raw.AuthorList.Author {
		if name := fieldparse.AuthorName(a.FirstName, a.LastName, a.CollectiveName); name != "" {
			authors = append(authors, name)
		}
	}

	var meshTerms []string
	for _, mh := range raw.MeshHeadingList.MeshHeading {
		if d := strings.TrimSpace(mh.DescriptorName); d != "" {
			meshTerms = append(meshTerms, d)
		}
	}

	source := strings.TrimSpace(raw.Source)
	if source == "" {
		source = "MED"
	}

	return &models.Article{
		ExternalID:      externalID,
		DOI:             strings.TrimSpace(raw.DOI),
		Title:           title,
		Abstract:        strings.TrimSpace(raw.AbstractText),
		Journal:         strings.TrimSpace(raw.JournalInfo.Journal.Title),
		PublicationDate: parseFirstPDate(raw.FirstPublicationDate),
		URL:             fmt.Sprintf("https://europepmc.org/article/%s/%s", source, externalID),
		Keywords:        marshalList(raw.KeywordList.Keyword),
		MeshTerms:       marshalList(meshTerms),
		Authors:         authors,
	}
}

// parseFirstPDate parst das firstPublicationDate-Feld ("2024-03-15", teils
// nur "2024-03" oder "2024").
func parseFirstPDate(s string) *time.Time {
	return fieldparse.Date(s)
}

// marshalList serialisiert eine nicht-leere Stringliste als JSON, sonst nil.
func marshalList(items []string) datatypes.JSON {
	cleaned := items[:0:0]
	for _, it := range items {
		if s := strings.TrimSpace(it); s != "" {
			cleaned = append(cleaned, s)
		}
	}
	if len(cleaned) == 0 {
		return nil
	}
	b, err := json.Marshal(cleaned)
	if err != nil {
		return nil
	}
	return b
}
