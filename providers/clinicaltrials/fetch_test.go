package clinicaltrials

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"neuro-harvest/config"
	"neuro-harvest/models"
	"neuro-harvest/providers"
)

const studiesFixture = `{
  "nextPageToken": "token-2",
  "studies": [
    {
      "protocolSection": {
        "identificationModule": {
          "nctId": "NCT01234567",
          "briefTitle": "Brief title",
          "officialTitle": "A Phase 2 Study of Compound X in Early Parkinson Disease"
        },
        "statusModule": {
          "overallStatus": "terminated",
          "startDateStruct": {"date": "2019-05"},
          "completionDateStruct": {"date": "2021-11-30"}
        },
        "descriptionModule": {"briefSummary": "Short summary."},
        "designModule": {"phases": ["PHASE1", "PHASE2"], "studyType": "INTERVENTIONAL"},
        "conditionsModule": {"conditions": ["Parkinson Disease", "Dementia"]},
        "sponsorCollaboratorsModule": {"leadSponsor": {"name": "Acme Pharma"}},
        "armsInterventionsModule": {
          "interventions": [
            {"type": "DRUG", "name": "Compound X"},
            {"type": "DRUG", "name": "Placebo"},
            {"type": "BEHAVIORAL", "name": "Exercise program"},
            {"type": "BIOLOGICAL", "name": "Antibody Y"}
          ]
        }
      }
    },
    {
      "protocolSection": {
        "identificationModule": {"nctId": ""},
        "statusModule": {"overallStatus": "RECRUITING"}
      }
    },
    {
      "protocolSection": {
        "identificationModule": {"nctId": "NCT07654321"},
        "statusModule": {"overallStatus": "RECRUITING"},
        "designModule": {"phases": "PHASE3", "studyType": "INTERVENTIONAL"},
        "armsInterventionsModule": {"interventions": {"type": "DRUG", "name": "Solo Drug"}}
      }
    }
  ]
}`

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		CTGBaseURL:     baseURL,
		PageSize:       50,
		RequestTimeout: 5 * time.Second,
	}
}

func TestFetchPageMapsStudies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/studies", r.URL.Path)
		assert.Equal(t, "parkinson", r.URL.Query().Get("query.term"))
		assert.Empty(t, r.URL.Query().Get("pageToken"))
		fmt.Fprint(w, studiesFixture)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(srv.URL), zap.NewNop())
	page, err := f.FetchPage(context.Background(), "parkinson", providers.SearchWindow{Until: time.Now()}, "")
	require.NoError(t, err)

	// Zwei brauchbare Studien, der NCT-lose Payload wird übersprungen.
	require.Len(t, page.Records, 2)
	assert.Equal(t, 1, page.Skipped)
	assert.Equal(t, "token-2", page.NextToken)

	first, ok := page.Records[0].(*models.Trial)
	require.True(t, ok)
	assert.Equal(t, "NCT01234567", first.NCTID)
	assert.Equal(t, "A Phase 2 Study of Compound X in Early Parkinson Disease", first.Title)
	assert.Equal(t, "TERMINATED", first.Status)
	assert.True(t, first.Abandoned())
	assert.Equal(t, "PHASE1, PHASE2", first.Phase)
	assert.Equal(t, "Parkinson Disease; Dementia", first.Conditions)
	assert.Equal(t, "Acme Pharma", first.Sponsor)
	require.NotNil(t, first.StartDate)
	assert.Equal(t, time.Date(2019, time.May, 1, 0, 0, 0, 0, time.UTC), *first.StartDate)
	require.NotNil(t, first.CompletionDate)
	assert.Equal(t, time.Date(2021, time.November, 30, 0, 0, 0, 0, time.UTC), *first.CompletionDate)
	assert.Equal(t, "https://clinicaltrials.gov/study/NCT01234567", first.URL)

	// Placebo und Verhaltensintervention werden rausgefiltert.
	require.Len(t, first.Interventions, 2)
	assert.Equal(t, "Compound X", first.Interventions[0].Name)
	assert.Equal(t, "DRUG", first.Interventions[0].Type)
	assert.Equal(t, "Antibody Y", first.Interventions[1].Name)

	// Einzelobjekt statt Liste wird ebenfalls dekodiert.
	second, ok := page.Records[1].(*models.Trial)
	require.True(t, ok)
	assert.Equal(t, "PHASE3", second.Phase)
	require.Len(t, second.Interventions, 1)
	assert.Equal(t, "Solo Drug", second.Interventions[0].Name)
	assert.False(t, second.Abandoned())
}

func TestFetchPagePassesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token-2", r.URL.Query().Get("pageToken"))
		fmt.Fprint(w, `{"studies": []}`)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(srv.URL), zap.NewNop())
	page, err := f.FetchPage(context.Background(), "parkinson", providers.SearchWindow{Until: time.Now()}, "token-2")
	require.NoError(t, err)
	assert.Empty(t, page.Records)
	// Letzte Seite: kein nextPageToken mehr.
	assert.Empty(t, page.NextToken)
}

func TestFetchPageWindowFilter(t *testing.T) {
	since := time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)
	until := time.Date(2024, time.June, 15, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t,
			"AREA[LastUpdatePostDate]RANGE[2024-06-01,2024-06-15]",
			r.URL.Query().Get("filter.advanced"))
		fmt.Fprint(w, `{"studies": []}`)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(srv.URL), zap.NewNop())
	_, err := f.FetchPage(context.Background(), "parkinson", providers.SearchWindow{Since: &since, Until: until}, "")
	require.NoError(t, err)
}

func TestFetchPageServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(srv.URL), zap.NewNop())
	_, err := f.FetchPage(context.Background(), "parkinson", providers.SearchWindow{Until: time.Now()}, "")
	require.Error(t, err)

	var transportErr *providers.TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, http.StatusBadGateway, transportErr.Status)
}

func TestFetchPageMalformedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"studies": [`)
	}))
	defer srv.Close()

	f := NewFetcher(testConfig(srv.URL), zap.NewNop())
	_, err := f.FetchPage(context.Background(), "parkinson", providers.SearchWindow{Until: time.Now()}, "")
	require.Error(t, err)

	var transportErr *providers.TransportError
	require.True(t, errors.As(err, &transportErr))
}
