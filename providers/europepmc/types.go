// Package europepmc enthält die Logik für die Interaktion mit der
// Europe PMC REST API.
package europepmc

// SearchResponse repräsentiert eine Ergebnisseite der /search-Abfrage.
// NextCursorMark wiederholt auf der letzten Seite den aktuellen Cursor.
type SearchResponse struct {
	HitCount       int    `json:"hitCount"`
	NextCursorMark string `json:"nextCursorMark"`
	ResultList     struct {
		Result []Result `json:"result"`
	} `json:"resultList"`
}

// Result repräsentiert einen einzelnen Treffer im resultType=core-Format.
type Result struct {
	ID                   string `json:"id"`
	Source               string `json:"source"`
	PMID                 string `json:"pmid"`
	DOI                  string `json:"doi"`
	Title                string `json:"title"`
	AbstractText         string `json:"abstractText"`
	FirstPublicationDate string `json:"firstPublicationDate"`
	JournalInfo          struct {
		Journal struct {
			Title string `json:"title"`
		} `json:"journal"`
	} `json:"journalInfo"`
	AuthorList struct {
		Author []AuthorEntry `json:"author"`
	} `json:"authorList"`
	KeywordList struct {
		Keyword []string `json:"keyword"`
	} `json:"keywordList"`
	MeshHeadingList struct {
		MeshHeading []MeshHeading `json:"meshHeading"`
	} `json:"meshHeadingList"`
}

// AuthorEntry repräsentiert einen Autor; CollectiveName ist der Fallback für
// organisatorische Autoren.
type AuthorEntry struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	CollectiveName string `json:"collectiveName"`
}

// MeshHeading trägt den Descriptor eines MeSH-Eintrags.
type MeshHeading struct {
	DescriptorName string `json:"descriptorName"`
}
