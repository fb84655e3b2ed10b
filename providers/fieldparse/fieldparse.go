// Package fieldparse bündelt die tolerante Feld-Extraktion aus heterogenen
// Provider-Payloads. Fehlende oder fehlerhafte Werte liefern nil bzw. leere
// Strings statt Fehlern; ein Record wird deswegen nie verworfen.
package fieldparse

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// monthAbbrevs bildet die dreibuchstabigen PubMed-Monatskürzel ab.
var monthAbbrevs = map[string]int{
	"Jan": 1, "Feb": 2, "Mar": 3, "Apr": 4,
	"May": 5, "Jun": 6, "Jul": 7, "Aug": 8,
	"Sep": 9, "Oct": 10, "Nov": 11, "Dec": 12,
}

var (
	leadingYearRE = regexp.MustCompile(`^\s*(\d{4})`)
	spaceRE       = regexp.MustCompile(`\s+`)
)

// Date parst "YYYY", "YYYY-MM" und "YYYY-MM-DD". Für lose formatierte Strings
// ("2024 Jan-Feb") greift der Fallback auf die führende vierstellige Jahreszahl;
// Monat und Tag werden dann auf 1 gesetzt. Unparsebare Eingaben liefern nil.
func Date(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	parts := strings.SplitN(s, "-", 3)
	if y, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
		m, d := 1, 1
		numeric := true
		if len(parts) > 1 {
			if v, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
				m = v
			} else {
				numeric = false
			}
		}
		if numeric && len(parts) > 2 {
			if v, err := strconv.Atoi(strings.TrimSpace(parts[2])); err == nil {
				d = v
			} else {
				numeric = false
			}
		}
		if numeric {
			// Out-of-range-Werte ergeben hier bewusst "kein Datum", keinen Fallback.
			return calendarDate(y, m, d)
		}
	}

	if match := leadingYearRE.FindStringSubmatch(s); match != nil {
		y, _ := strconv.Atoi(match[1])
		return calendarDate(y, 1, 1)
	}
	return nil
}

// StructuredDate parst die strukturierte {year, month, day}-Form. Der Monat darf
// numerisch oder als Dreibuchstaben-Kürzel vorliegen (Default 1), der Tag
// defaultet bei Fehlen oder nicht-numerischem Wert auf 1.
func StructuredDate(year, month, day string) *time.Time {
	y, err := strconv.Atoi(strings.TrimSpace(year))
	if err != nil {
		return nil
	}

	m := 1
	if ms := strings.TrimSpace(month); ms != "" {
		if v, err := strconv.Atoi(ms); err == nil {
			m = v
		} else if len(ms) >= 3 {
			if v, ok := monthAbbrevs[ms[:3]]; ok {
				m = v
			}
		}
	}

	d := 1
	if ds := strings.TrimSpace(day); ds != "" {
		if v, err := strconv.Atoi(ds); err == nil {
			d = v
		}
	}

	return calendarDate(y, m, d)
}

// calendarDate baut ein UTC-Datum und verwirft ungültige Kalenderdaten
// (Monat 13, 30. Februar) sowie nicht-vierstellige Jahre.
func calendarDate(y, m, d int) *time.Time {
	if y < 1000 || y > 9999 || m < 1 || m > 12 || d < 1 || d > 31 {
		return nil
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	if t.Year() != y || t.Month() != time.Month(m) || t.Day() != d {
		return nil
	}
	return &t
}

// OneOrMany dekodiert JSON-Felder, die wahlweise als Einzelobjekt oder als
// Liste auftreten, einheitlich zu einer Liste.
type OneOrMany[T any] []T

// UnmarshalJSON implementiert json.Unmarshaler.
func (m *OneOrMany[T]) UnmarshalJSON(b []byte) error {
	var many []T
	if err := json.Unmarshal(b, &many); err == nil {
		*m = many
		return nil
	}
	var one T
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*m = OneOrMany[T]{one}
	return nil
}

// AuthorName baut den Anzeigenamen eines Autors: bevorzugt "Vorname Nachname",
// sonst der kollektive/organisatorische Name, sonst leer (Eintrag überspringen).
func AuthorName(given, family, collective string) string {
	given, family = strings.TrimSpace(given), strings.TrimSpace(family)
	if given != "" || family != "" {
		return strings.TrimSpace(given + " " + family)
	}
	return strings.TrimSpace(collective)
}

// AbstractPart ist ein (optional gelabelter) Abschnitt eines Abstracts.
type AbstractPart struct {
	Label string
	Text  string
}

// JoinAbstract fügt Abstract-Abschnitte in Quellreihenfolge zusammen: gelabelte
// als "Label: text", ungelabelte als Fließtext; leere Abschnitte entfallen.
func JoinAbstract(parts []AbstractPart) string {
	var out []string
	for _, p := range parts {
		txt := strings.TrimSpace(p.Text)
		if txt == "" {
			continue
		}
		if label := strings.TrimSpace(p.Label); label != "" {
			out = append(out, label+": "+txt)
		} else {
			out = append(out, txt)
		}
	}
	return strings.Join(out, "\n\n")
}

// TypedID ist ein typisierter Identifier-Eintrag (z.B. IdType "doi").
type TypedID struct {
	Type  string
	Value string
}

// FirstID liefert den ersten passenden typisierten Identifier aus einer
// ungeordneten Liste; Fehlen ist kein Fehler.
func FirstID(ids []TypedID, idType string) string {
	for _, id := range ids {
		if strings.EqualFold(id.Type, idType) {
			if v := strings.TrimSpace(id.Value); v != "" {
				return v
			}
		}
	}
	return ""
}

// NameKey normalisiert einen natürlichen Schlüssel (Autor-, Interventionsname):
// NFC-Normalisierung plus Whitespace-Kollaps.
func NameKey(s string) string {
	normalized, _, err := transform.String(norm.NFC, s)
	if err != nil {
		normalized = s
	}
	return strings.TrimSpace(spaceRE.ReplaceAllString(normalized, " "))
}
