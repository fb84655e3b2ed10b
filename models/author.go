package models

// Author ist eine über alle Artikel deduplizierte Autorenzeile.
// Natürlicher Schlüssel ist der angezeigte Name.
type Author struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"uniqueIndex;size:512;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (Author) TableName() string {
	return "authors"
}

// ArticleAuthor verknüpft Artikel und Autor; doppelte Verknüpfung ist ein No-op.
type ArticleAuthor struct {
	ID        uint `json:"id" gorm:"primaryKey"`
	ArticleID uint `json:"article_id" gorm:"uniqueIndex:idx_article_authors_edge;not null"`
	AuthorID  uint `json:"author_id" gorm:"uniqueIndex:idx_article_authors_edge;not null"`
}

// TableName gibt den expliziten Tabellennamen für GORM an.
func (ArticleAuthor) TableName() string {
	return "article_authors"
}
