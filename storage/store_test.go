package storage

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"

	"neuro-harvest/models"
)

// coalesced meldet, ob das Statement die Spalte per COALESCE nur füllt.
func coalesced(sql, table, column string) bool {
	re := regexp.MustCompile(column + `\s*=\s*COALESCE\(EXCLUDED\.` + column + `,\s*` + table + `\.` + column + `\)`)
	return re.MatchString(sql)
}

// overwritten meldet, ob das Statement die Spalte bedingungslos überschreibt.
func overwritten(sql, column string) bool {
	re := regexp.MustCompile(column + `\s*=\s*EXCLUDED\.` + column + `\b`)
	return re.MatchString(sql)
}

func TestUpsertArticleSQLShape(t *testing.T) {
	assert.Contains(t, upsertArticleSQL, "ON CONFLICT (source_id, external_id) DO UPDATE")
	assert.Contains(t, upsertArticleSQL, "RETURNING id, (xmax = 0) AS inserted")

	// Pflichtfelder werden überschrieben, nie koalesziert.
	for _, col := range []string{"title", "url"} {
		assert.True(t, overwritten(upsertArticleSQL, col), col)
		assert.False(t, coalesced(upsertArticleSQL, "articles", col), col)
	}

	// Optionale Felder werden nur gefüllt; ein magerer Re-Harvest darf
	// vorhandene Werte nicht leeren.
	for _, col := range []string{"doi", "abstract", "journal", "publication_date", "keywords", "mesh_terms"} {
		assert.True(t, coalesced(upsertArticleSQL, "articles", col), col)
	}
}

func TestUpsertTrialSQLShape(t *testing.T) {
	assert.Contains(t, upsertTrialSQL, "ON CONFLICT (source_id, nct_id) DO UPDATE")
	assert.Contains(t, upsertTrialSQL, "RETURNING id, (xmax = 0) AS inserted")

	// Die Registry liefert Titel, Status und URL verbindlich.
	for _, col := range []string{"title", "status", "url"} {
		assert.True(t, overwritten(upsertTrialSQL, col), col)
		assert.False(t, coalesced(upsertTrialSQL, "trials", col), col)
	}

	for _, col := range []string{"phase", "study_type", "sponsor", "brief_summary", "conditions", "start_date", "completion_date"} {
		assert.True(t, coalesced(upsertTrialSQL, "trials", col), col)
	}
}

func TestNullHelpers(t *testing.T) {
	// Leere Werte werden als NULL gebunden, damit COALESCE im Update greift.
	assert.Nil(t, nullStr(""))
	assert.Equal(t, "x", nullStr("x"))

	assert.Nil(t, nullJSON(nil))
	assert.Nil(t, nullJSON(datatypes.JSON{}))
	assert.Equal(t, datatypes.JSON(`["a"]`), nullJSON(datatypes.JSON(`["a"]`)))
}

func TestCanonicalNames(t *testing.T) {
	names := []string{
		"Maria  Schmidt",
		"Maria Schmidt",
		" Maria Schmidt ",
		"Chloé Dupont",          // é als ein Codepoint
		"Chloé Dupont",         // e + kombinierender Akzent
		"",
		"   ",
		"Jonas Weber",
	}
	got := canonicalNames(names)

	// Whitespace- und Unicode-Varianten fallen auf denselben persistierten
	// Schlüssel zusammen; die Eingabereihenfolge bleibt erhalten.
	require.Equal(t, []string{"Maria Schmidt", "Chloé Dupont", "Jonas Weber"}, got)

	assert.Nil(t, canonicalNames(nil))
}

func TestCanonicalInterventions(t *testing.T) {
	interventions := []models.Intervention{
		{Name: "Compound  X", Type: "DRUG"},
		{Name: "Compound X", Type: "BIOLOGICAL"},
		{Name: "Antibody Y", Type: "BIOLOGICAL"},
		{Name: "  ", Type: "DRUG"},
	}
	got := canonicalInterventions(interventions)

	require.Len(t, got, 2)
	assert.Equal(t, "Compound X", got[0].Name)
	// Der Typ der ersten Sichtung gewinnt.
	assert.Equal(t, "DRUG", got[0].Type)
	assert.Equal(t, "Antibody Y", got[1].Name)
}
