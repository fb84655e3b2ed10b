package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyArticle(t *testing.T) {
	cases := []struct {
		name     string
		title    string
		abstract string
		want     []string
	}{
		{
			name:  "nur general",
			title: "A cohort study of gait decline",
			want:  []string{TagGeneral},
		},
		{
			name:     "natural über abstract",
			title:    "Neuroprotection in PD models",
			abstract: "We tested a polyphenol-rich plant extract.",
			want:     []string{TagGeneral, TagNatural},
		},
		{
			name:  "repurpose über titel",
			title: "Repurposing a withdrawn kinase inhibitor for Alzheimer",
			want:  []string{TagGeneral, TagRepurpose},
		},
		{
			name:     "orphan",
			abstract: "Orphan drug designation for a rare disease cohort.",
			want:     []string{TagGeneral, TagOrphan},
		},
		{
			name:     "mehrfach",
			title:    "Terminated trial of a herbal extract",
			abstract: "rare disease population",
			want:     []string{TagGeneral, TagNatural, TagRepurpose, TagOrphan},
		},
		{
			name:  "wortgrenzen greifen",
			title: "Herbivore models of preparation",
			want:  []string{TagGeneral},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyArticle(tc.title, tc.abstract))
		})
	}
}
