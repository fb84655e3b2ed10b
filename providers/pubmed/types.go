// Package pubmed enthält die Logik für die Interaktion mit der PubMed E-Utilities API.
package pubmed

import (
	"encoding/xml"
)

// ESearchResponse repräsentiert die JSON-Antwort von ESearch für die ID-Suche.
type ESearchResponse struct {
	ESearchResult struct {
		IdList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// PubmedArticleSet repräsentiert das gesamte XML-Dokument von EFetch.
type PubmedArticleSet struct {
	XMLName       xml.Name        `xml:"PubmedArticleSet"`
	PubmedArticle []PubmedArticle `xml:"PubmedArticle"`
}

// PubmedArticle repräsentiert einen einzelnen Artikel in der XML-Antwort.
type PubmedArticle struct {
	MedlineCitation struct {
		PMID    string `xml:"PMID"`
		Article struct {
			Title    string `xml:"ArticleTitle"`
			Abstract struct {
				Sections []AbstractSection `xml:"AbstractText"`
			} `xml:"Abstract"`
			Authors []AuthorEntry `xml:"AuthorList>Author"`
			Journal struct {
				Title   string  `xml:"Title"`
				PubDate PubDate `xml:"JournalIssue>PubDate"`
			} `xml:"Journal"`
		} `xml:"Article"`
		Keywords  []string `xml:"KeywordList>Keyword"`
		MeshTerms []string `xml:"MeshHeadingList>MeshHeading>DescriptorName"`
	} `xml:"MedlineCitation"`
	ArticleIDs []ArticleID `xml:"PubmedData>ArticleIdList>ArticleId"`
}

// AbstractSection ist ein optional gelabelter Abstract-Abschnitt.
type AbstractSection struct {
	Label string `xml:"Label,attr"`
	Text  string `xml:",chardata"`
}

// AuthorEntry repräsentiert einen Autor; CollectiveName ist der Fallback für
// organisatorische Autoren ohne Personennamen.
type AuthorEntry struct {
	LastName       string `xml:"LastName"`
	ForeName       string `xml:"ForeName"`
	CollectiveName string `xml:"CollectiveName"`
}

// PubDate kann Year/Month/Day tragen oder nur ein freies MedlineDate ("2024 Jan-Feb").
type PubDate struct {
	Year        string `xml:"Year"`
	Month       string `xml:"Month"`
	Day         string `xml:"Day"`
	MedlineDate string `xml:"MedlineDate"`
}

// ArticleID ist ein typisierter Identifier-Eintrag (IdType z.B. "doi", "pmc").
type ArticleID struct {
	IDType string `xml:"IdType,attr"`
	Value  string `xml:",chardata"`
}
