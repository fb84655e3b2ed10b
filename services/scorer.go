package services

import (
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"neuro-harvest/models"
)

// tagWeights gewichtet die Tags eines Artikels. Repurposing-Kandidaten sind
// am interessantesten, "general" trägt nichts bei.
var tagWeights = map[string]float64{
	TagRepurpose: 3.0,
	TagNatural:   2.0,
	TagOrphan:    1.0,
	TagGeneral:   0.0,
}

// keywordBonuses sind Themen-Schlagworte mit Bonuspunkten. Substring-Match,
// damit "neurodegener" auch neurodegeneration/neurodegenerative trifft.
var keywordBonuses = map[string]float64{
	"amyloid":         1.0,
	"tau":             1.0,
	"alpha-synuclein": 1.0,
	"parkinson":       1.0,
	"alzheimer":       1.0,
	"neurodegener":    1.0,
}

// maxKeywordBonus begrenzt den Keyword-Anteil, damit er die Bewertung nicht dominiert.
const maxKeywordBonus = 4.0

// RecencyScore gibt 0 bis 5 Punkte nach Alter des Publikationsdatums:
// bis 30 Tage linear von 5 auf 4, bis 180 Tage von 4 auf 1, danach langsamer
// Auslauf gegen 0. Ohne Datum gibt es 0 Punkte.
func RecencyScore(pubDate *time.Time, now time.Time) float64 {
	if pubDate == nil {
		return 0.0
	}
	days := now.Sub(*pubDate).Hours() / 24.0
	if days < 0 {
		days = 0
	}
	switch {
	case days <= 30:
		return 5.0 - (days/30.0)*1.0
	case days <= 180:
		return 4.0 - ((days-30)/150.0)*3.0
	default:
		score := 1.0 - ((days-180)/365.0)*1.0
		if score < 0 {
			return 0.0
		}
		return score
	}
}

// KeywordBonus summiert die Boni der in Titel oder Abstract vorkommenden
// Schlagworte, gedeckelt auf maxKeywordBonus.
func KeywordBonus(title, abstract string) float64 {
	text := strings.ToLower(title + " " + abstract)
	bonus := 0.0
	for kw, w := range keywordBonuses {
		if strings.Contains(text, kw) {
			bonus += w
		}
	}
	if bonus > maxKeywordBonus {
		return maxKeywordBonus
	}
	return bonus
}

// TagScore summiert die Gewichte der übergebenen Tag-Namen.
func TagScore(tags []string) float64 {
	score := 0.0
	for _, t := range tags {
		score += tagWeights[strings.ToLower(strings.TrimSpace(t))]
	}
	return score
}

// Scorer berechnet die Gesamtbewertung pro Artikel und schreibt sie in
// article_scores fort.
type Scorer struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewScorer erstellt eine neue Scorer-Instanz.
func NewScorer(db *gorm.DB, logger *zap.Logger) *Scorer {
	return &Scorer{DB: db, Logger: logger}
}

// scoreLimit begrenzt einen Scoring-Durchlauf auf die jüngsten Artikel.
const scoreLimit = 5000

// ScoreAll berechnet Tag-Gewicht + Aktualität + Keyword-Bonus für die
// jüngsten Artikel und upsertet das Ergebnis idempotent.
func (s *Scorer) ScoreAll() (int, error) {
	var articles []models.Article
	err := s.DB.Select("id", "title", "abstract", "publication_date").
		Order("id DESC").Limit(scoreLimit).Find(&articles).Error
	if err != nil {
		return 0, err
	}

	type tagRow struct {
		ArticleID uint
		Name      string
	}
	var tagRows []tagRow
	err = s.DB.Table("article_tags").
		Select("article_tags.article_id, tags.name").
		Joins("JOIN tags ON tags.id = article_tags.tag_id").
		Scan(&tagRows).Error
	if err != nil {
		return 0, err
	}

	tagsByArticle := make(map[uint][]string)
	for _, r := range tagRows {
		tagsByArticle[r.ArticleID] = append(tagsByArticle[r.ArticleID], r.Name)
	}

	now := time.Now()
	scored := 0
	for _, a := range articles {
		total := TagScore(tagsByArticle[a.ID]) +
			RecencyScore(a.PublicationDate, now) +
			KeywordBonus(a.Title, a.Abstract)

		score := models.ArticleScore{ArticleID: a.ID, TotalScore: total, UpdatedAt: now}
		err := s.DB.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "article_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_score": total,
				"updated_at":  now,
			}),
		}).Create(&score).Error
		if err != nil {
			return scored, err
		}
		scored++
	}

	s.Logger.Info("Artikel bewertet", zap.Int("count", scored))
	return scored, nil
}
