package services

import (
	"regexp"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"neuro-harvest/models"
)

// TagGeneral bekommt jeder Artikel; die übrigen Tags hängen an Mustern in
// Titel und Abstract.
const (
	TagGeneral   = "general"
	TagNatural   = "natural"
	TagRepurpose = "repurpose"
	TagOrphan    = "orphan"
)

var (
	naturalRE   = regexp.MustCompile(`(?i)\b(plant|herbal|herb|extract|phytochemical|polyphenol|flavonoid|natural product|botanical|ayurvedic|traditional medicine)\b`)
	repurposeRE = regexp.MustCompile(`(?i)\b(repurpose|reposition|drug reposition|off-label|discontinued|terminated|withdrawn|failed trial|suspended)\b`)
	orphanRE    = regexp.MustCompile(`(?i)\b(orphan drug|rare disease|rare)\b`)
)

// ClassifyArticle ermittelt die Tag-Namen für einen Artikel anhand von Titel
// und Abstract. "general" ist immer dabei.
func ClassifyArticle(title, abstract string) []string {
	text := title + " " + abstract
	tags := []string{TagGeneral}
	if naturalRE.MatchString(text) {
		tags = append(tags, TagNatural)
	}
	if repurposeRE.MatchString(text) {
		tags = append(tags, TagRepurpose)
	}
	if orphanRE.MatchString(text) {
		tags = append(tags, TagOrphan)
	}
	return tags
}

// Tagger klassifiziert Artikel regelbasiert und verknüpft sie mit Tags.
type Tagger struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewTagger erstellt eine neue Tagger-Instanz.
func NewTagger(db *gorm.DB, logger *zap.Logger) *Tagger {
	return &Tagger{DB: db, Logger: logger}
}

// TagAll klassifiziert alle Artikel neu. Die Verknüpfungen sind idempotent;
// bestehende Tags werden nie entfernt.
func (t *Tagger) TagAll() (int, error) {
	tagIDs, err := t.ensureTags(TagGeneral, TagNatural, TagRepurpose, TagOrphan)
	if err != nil {
		return 0, err
	}

	var articles []models.Article
	if err := t.DB.Select("id", "title", "abstract").Order("id DESC").Find(&articles).Error; err != nil {
		return 0, err
	}

	tagged := 0
	for _, a := range articles {
		for _, name := range ClassifyArticle(a.Title, a.Abstract) {
			edge := models.ArticleTag{ArticleID: a.ID, TagID: tagIDs[name]}
			if err := t.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
				return tagged, err
			}
		}
		tagged++
	}

	t.Logger.Info("Artikel getaggt", zap.Int("count", tagged))
	return tagged, nil
}

// ensureTags legt die Tag-Zeilen an (falls nötig) und gibt ihre IDs zurück.
func (t *Tagger) ensureTags(names ...string) (map[string]uint, error) {
	ids := make(map[string]uint, len(names))
	for _, name := range names {
		tag := models.Tag{Name: name}
		err := t.DB.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"name": gorm.Expr("EXCLUDED.name")}),
		}).Create(&tag).Error
		if err != nil {
			return nil, err
		}
		ids[name] = tag.ID
	}
	return ids, nil
}
