package models

// Tag ist eine Schlagwort-Klassifikation, die der Tagger an Artikel hängt.
type Tag struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;size:128;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Tag) TableName() string {
	return "tags"
}

// ArticleTag verknüpft Artikel und Tag; doppelte Verknüpfung ist ein No-op.
type ArticleTag struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	ArticleID uint `json:"article_id" gorm:"uniqueIndex:idx_article_tags_edge;not null"`
	TagID     uint `json:"tag_id" gorm:"uniqueIndex:idx_article_tags_edge;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (ArticleTag) TableName() string {
	return "article_tags"
}
