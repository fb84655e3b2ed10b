package clinicaltrials

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"neuro-harvest/config"
	"neuro-harvest/models"
	"neuro-harvest/providers"
	"neuro-harvest/providers/fieldparse"
)

// studyFields listet die Felder, die wir pro Studie anfordern. Das hält die
// Antworten klein und stabil gegenüber API-Erweiterungen.
var studyFields = []string{
	"NCTId",
	"BriefTitle",
	"OfficialTitle",
	"OverallStatus",
	"BriefSummary",
	"Phase",
	"StudyType",
	"Condition",
	"LeadSponsorName",
	"StartDate",
	"CompletionDate",
	"InterventionType",
	"InterventionName",
}

// allowedInterventionTypes sind die Interventionstypen, die wir als Wirkstoff
// bzw. Substanz persistieren. Verhaltens- und Geräteinterventionen bleiben außen vor.
var allowedInterventionTypes = map[string]bool{
	"DRUG":               true,
	"BIOLOGICAL":         true,
	"DIETARY_SUPPLEMENT": true,
	"OTHER":              true,
}

// junkInterventionNames sind Namen ohne Informationswert, die in fast jeder
// Studie auftauchen und die Deduplikation nur verschmutzen würden.
var junkInterventionNames = map[string]bool{
	"placebo":          true,
	"sham":             true,
	"saline":           true,
	"standard of care": true,
	"no intervention":  true,
}

// Fetcher implementiert das Provider-Interface für die ClinicalTrials.gov API v2.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *http.Client
}

// NewFetcher erstellt eine neue Instanz des ClinicalTrials-Fetchers.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		Config: cfg,
		Logger: logger,
		client: &http.Client{Timeout: cfg.RequestTimeout},
	}
}

// Name gibt den Namen des Providers zurück.
func (f *Fetcher) Name() string {
	return "clinicaltrials"
}

// FetchPage holt eine Ergebnisseite von /studies. Das Fortsetzungstoken ist
// das pageToken der API; ein leeres nextPageToken beendet die Pagination.
func (f *Fetcher) FetchPage(ctx context.Context, term string, window providers.SearchWindow, pageToken string) (*providers.Page, error) {
	log := f.Logger.With(zap.String("term", term), zap.String("page_token", pageToken))

	params := url.Values{}
	params.Set("query.term", term)
	params.Set("pageSize", strconv.Itoa(f.Config.PageSize))
	params.Set("fields", strings.Join(studyFields, ","))
	if window.Since != nil {
		// Nur Studien, die seit dem letzten Lauf aktualisiert wurden.
		params.Set("filter.advanced", fmt.Sprintf(
			"AREA[LastUpdatePostDate]RANGE[%s,%s]",
			window.Since.Format("2006-01-02"),
			window.Until.Format("2006-01-02"),
		))
	}
	if pageToken != "" {
		params.Set("pageToken", pageToken)
	}

	reqURL := fmt.Sprintf("%s/studies?%s", f.Config.CTGBaseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &providers.TransportError{Provider: "clinicaltrials", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &providers.TransportError{Provider: "clinicaltrials", Status: resp.StatusCode}
	}

	var studiesResp StudiesResponse
	if err := json.NewDecoder(resp.Body).Decode(&studiesResp); err != nil {
		return nil, &providers.TransportError{Provider: "clinicaltrials", Err: err}
	}
	log.Debug("Studies-Seite geladen", zap.Int("studies", len(studiesResp.Studies)))

	page := &providers.Page{NextToken: studiesResp.NextPageToken}
	for i := range studiesResp.Studies {
		trial := mapStudyToModel(&studiesResp.Studies[i])
		if trial == nil {
			page.Skipped++
			continue
		}
		page.Records = append(page.Records, trial)
	}
	return page, nil
}

// mapStudyToModel wandelt eine Studie in unser Trial-Modell um.
// Ohne NCT-ID gibt es nil zurück; der Payload wird dann als übersprungen gezählt.
func mapStudyToModel(raw *Study) *models.Trial {
	ps := raw.ProtocolSection

	nctID := strings.TrimSpace(ps.Identification.NCTID)
	if nctID == "" {
		return nil
	}

	title := strings.TrimSpace(ps.Identification.OfficialTitle)
	if title == "" {
		title = strings.TrimSpace(ps.Identification.BriefTitle)
	}
	if title == "" {
		title = fmt.Sprintf("(no title) %s", nctID)
	}

	return &models.Trial{
		NCTID:          nctID,
		Title:          title,
		BriefSummary:   strings.TrimSpace(ps.Description.BriefSummary),
		Status:         strings.ToUpper(strings.TrimSpace(ps.Status.OverallStatus)),
		Phase:          strings.Join(ps.Design.Phases, ", "),
		StudyType:      strings.TrimSpace(ps.Design.StudyType),
		Conditions:     strings.Join(ps.Conditions.Conditions, "; "),
		Sponsor:        strings.TrimSpace(ps.Sponsor.LeadSponsor.Name),
		StartDate:      fieldparse.Date(ps.Status.StartDate.Date),
		CompletionDate: fieldparse.Date(ps.Status.CompletionDate.Date),
		URL:            fmt.Sprintf("https://clinicaltrials.gov/study/%s", nctID),
		Interventions:  extractInterventions(ps.ArmsInterventions.Interventions),
	}
}

// extractInterventions filtert die Interventionen einer Studie auf die
// persistierbaren Typen und wirft Füllnamen wie "Placebo" raus.
func extractInterventions(entries []InterventionEntry) []models.Intervention {
	var out []models.Intervention
	for _, e := range entries {
		typ := strings.ToUpper(strings.TrimSpace(e.Type))
		if !allowedInterventionTypes[typ] {
			continue
		}
		name := strings.TrimSpace(e.Name)
		if name == "" || junkInterventionNames[strings.ToLower(name)] {
			continue
		}
		out = append(out, models.Intervention{Name: name, Type: typ})
	}
	return out
}
