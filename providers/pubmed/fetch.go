package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
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

// Fetcher implementiert das Provider-Interface für PubMed (ESearch + EFetch).
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *http.Client
}

// NewFetcher erstellt eine neue Instanz des PubMed-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config: cfg,
		Logger: logger,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "pubmed"
}

// FetchPage holt eine Ergebnisseite: erst die PMIDs der Seite via ESearch,
// dann deren Metadaten via EFetch. Das Fortsetzungstoken ist der retstart-Offset.
func (f *Fetcher) FetchPage(ctx context.Context, term string, window providers.SearchWindow, pageToken string) (*providers.Page, error) {
	log := f.Logger.With(zap.String("term", term), zap.String("page_token", pageToken))

	offset := 0
	if pageToken != "" {
		v, err := strconv.Atoi(pageToken)
		if err != nil {
			return nil, fmt.Errorf("ungültiges pubmed page token %q: %w", pageToken, err)
		}
		offset = v
	}

	ids, err := f.searchIDs(ctx, term, window, offset)
	if err != nil {
		return nil, err
	}
	log.Debug("ESearch-Seite geladen", zap.Int("ids", len(ids)), zap.Int("offset", offset))

	page := &providers.Page{}
	if len(ids) == 0 {
		return page, nil
	}

	articleSet, err := f.fetchDetails(ctx, ids)
	if err != nil {
		return nil, err
	}

	for i := range articleSet.PubmedArticle {
		article := mapArticleToModel(&articleSet.PubmedArticle[i])
		if article == nil {
			page.Skipped++
			continue
		}
		page.Records = append(page.Records, article)
	}

	// Eine volle Seite signalisiert, dass weitere Ergebnisse existieren können.
	if len(ids) == f.Config.PageSize {
		page.NextToken = strconv.Itoa(offset + len(ids))
	}
	return page, nil
}

// searchIDs führt eine einzelne ESearch-Abfrage durch und gibt die PMIDs der Seite zurück.
func (f *Fetcher) searchIDs(ctx context.Context, term string, window providers.SearchWindow, offset int) ([]string, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("term", term)
	params.Set("retmode", "json")
	params.Set("retmax", strconv.Itoa(f.Config.PageSize))
	params.Set("retstart", strconv.Itoa(offset))
	params.Set("sort", "date")
	if window.Since != nil {
		// Fenster nach Publikationsdatum begrenzen (pdat erwartet YYYY/MM/DD).
		params.Set("datetype", "pdat")
		params.Set("mindate", window.Since.Format("2006/01/02"))
		params.Set("maxdate", window.Until.Format("2006/01/02"))
	}
	if f.Config.PubMedAPIKey != "" {
		params.Set("api_key", f.Config.PubMedAPIKey)
	}

	searchURL := fmt.Sprintf("%s/esearch.fcgi?%s", f.Config.PubMedBaseURL, params.Encode())

	var esearchResp ESearchResponse
	if err := f.getJSON(ctx, searchURL, &esearchResp); err != nil {
		return nil, err
	}
	return esearchResp.ESearchResult.IdList, nil
}

// fetchDetails holt die Metadaten für die PMIDs einer Seite via EFetch.
func (f *Fetcher) fetchDetails(ctx context.Context, pmids []string) (*PubmedArticleSet, error) {
	params := url.Values{}
	params.Set("db", "pubmed")
	params.Set("id", strings.Join(pmids, ","))
	params.Set("retmode", "xml")
	if f.Config.PubMedAPIKey != "" {
		params.Set("api_key", f.Config.PubMedAPIKey)
	}

	efetchURL := fmt.Sprintf("%s/efetch.fcgi?%s", f.Config.PubMedBaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, efetchURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &providers.TransportError{Provider: "pubmed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &providers.TransportError{Provider: "pubmed", Status: resp.StatusCode}
	}

	var articleSet PubmedArticleSet
	if err := xml.NewDecoder(resp.Body).Decode(&articleSet); err != nil {
		return nil, &providers.TransportError{Provider: "pubmed", Err: err}
	}
	return &articleSet, nil
}

// getJSON führt einen GET aus und dekodiert die JSON-Antwort.
func (f *Fetcher) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return &providers.TransportError{Provider: "pubmed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &providers.TransportError{Provider: "pubmed", Status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &providers.TransportError{Provider: "pubmed", Err: err}
	}
	return nil
}

// mapArticleToModel wandelt ein XML-Article-Objekt in unser Article-Modell um.
// Ohne PMID gibt es nil zurück; der Payload wird dann als übersprungen gezählt.
func mapArticleToModel(raw *PubmedArticle) *models.Article {
	pmid := strings.TrimSpace(raw.MedlineCitation.PMID)
	if pmid == "" {
		return nil
	}

	article := raw.MedlineCitation.Article

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = fmt.Sprintf("(no title) PMID %s", pmid)
	}

	parts := make([]fieldparse.AbstractPart, 0, len(article.Abstract.Sections))
	for _, sec := range article.Abstract.Sections {
		parts = append(parts, fieldparse.AbstractPart{Label: sec.Label, Text: sec.Text})
	}

	var authors []string
	for _, a := range article.Authors {
		if name := fieldparse.AuthorName(a.ForeName, a.LastName, a.CollectiveName); name != "" {
			authors = append(authors, name)
		}
	}

	ids := make([]fieldparse.TypedID, 0, len(raw.ArticleIDs))
	for _, id := range raw.ArticleIDs {
		ids = append(ids, fieldparse.TypedID{Type: id.IDType, Value: id.Value})
	}

	return &models.Article{
		ExternalID:      pmid,
		DOI:             fieldparse.FirstID(ids, "doi"),
		Title:           title,
		Abstract:        fieldparse.JoinAbstract(parts),
		Journal:         strings.TrimSpace(article.Journal.Title),
		PublicationDate: parsePubDate(article.Journal.PubDate),
		URL:             fmt.Sprintf("https://pubmed.ncbi.nlm.nih.gov/%s/", pmid),
		Keywords:        marshalList(raw.MedlineCitation.Keywords),
		MeshTerms:       marshalList(raw.MedlineCitation.MeshTerms),
		Authors:         authors,
	}
}

// parsePubDate versucht erst die strukturierte Year/Month/Day-Form, dann das
// freie MedlineDate ("2024 Jan-Feb").
func parsePubDate(pd PubDate) *time.Time {
	if t := fieldparse.StructuredDate(pd.Year, pd.Month, pd.Day); t != nil {
		return t
	}
	return fieldparse.Date(pd.MedlineDate)
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
