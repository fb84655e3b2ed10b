package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepairJSON(t *testing.T) {
	valid := `{"plain_summary": "ok"}`

	// Intaktes JSON bleibt unverändert.
	assert.Equal(t, valid, RepairJSON(valid))

	// Codefences mit Sprach-Hinweis werden entfernt.
	fenced := "```json\n" + valid + "\n```"
	assert.Equal(t, valid, RepairJSON(fenced))

	// Fragment ohne äußere Klammern wird eingewickelt.
	fragment := `"plain_summary": "ok"`
	repaired := RepairJSON(fragment)
	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(repaired), &payload))
	assert.Equal(t, "ok", payload["plain_summary"])

	// Kommentar vor und nach dem Objekt wird abgeschnitten.
	chatty := "Here is the JSON you asked for:\n" + valid + "\nLet me know if you need more."
	assert.Equal(t, valid, RepairJSON(chatty))
}

func TestSummaryPayloadParsing(t *testing.T) {
	raw := `{
		"plain_summary": "Kurzfassung.",
		"technical_summary": ["Befund eins", "  ", "Befund zwei"],
		"signals": {"study_type": "preclinical", "repurposing_signal": true}
	}`

	var payload summaryPayload
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))
	assert.Equal(t, "Kurzfassung.", payload.PlainSummary)
	assert.Len(t, payload.TechnicalSummary, 3)
	assert.JSONEq(t, `{"study_type": "preclinical", "repurposing_signal": true}`, string(payload.Signals))
}
