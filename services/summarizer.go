package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"neuro-harvest/config"
	"neuro-harvest/models"
)

const summarySystemPrompt = "You are a biomedical research assistant. " +
	"Summarize neurodegenerative research (Parkinson's/Alzheimer's) precisely. " +
	"Never invent facts not present in title/abstract. Be concise, cautious, and structured."

const summaryPromptTemplate = `Given the paper title and abstract, produce THREE outputs:

(1) plain_summary: 2-3 sentences for an educated non-specialist.
(2) technical_summary: 4-6 bullets for a scientist.
(3) signals: structured extraction for downstream analysis.

Return STRICT JSON ONLY as a single object that starts with "{" and ends with "}".
No markdown, no commentary.

Schema:
{
  "plain_summary": "string",
  "technical_summary": ["string", "..."],
  "signals": {
    "diseases": ["Parkinson's", "Alzheimer's"],
    "study_type": "basic|preclinical|clinical|review|other",
    "models": ["mouse", "cell culture", "human cohort"],
    "mechanisms": ["string"],
    "targets_pathways": ["string"],
    "compounds_interventions": [
      {"name": "string", "type": "drug|natural|device|behavioral|other", "notes": "string"}
    ],
    "biomarkers": ["string"],
    "outcomes": ["string"],
    "trial_phase": "preclinical|phase1|phase2|phase3|phase4|na",
    "repurposing_signal": true,
    "novelty_signal": "low|medium|high",
    "confidence": 0.0,
    "notes": "string"
  }
}

Title: %s

Abstract:
%s
`

// summaryPayload ist die erwartete JSON-Antwort des Modells.
type summaryPayload struct {
	PlainSummary     string          `json:"plain_summary"`
	TechnicalSummary []string        `json:"technical_summary"`
	Signals          json.RawMessage `json:"signals"`
}

// Summarizer erzeugt KI-Zusammenfassungen für Artikel ohne Summary-Zeile.
// Ohne konfigurierten API-Key ist der Dienst deaktiviert.
type Summarizer struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *gorm.DB
	client *openai.Client
}

// NewSummarizer erstellt eine neue Summarizer-Instanz.
func NewSummarizer(cfg *config.Config, logger *zap.Logger, db *gorm.DB) *Summarizer {
	s := &Summarizer{Config: cfg, Logger: logger, DB: db}
	if cfg.OpenAIAPIKey != "" {
		s.client = openai.NewClient(cfg.OpenAIAPIKey)
	}
	return s
}

// Enabled meldet, ob ein API-Key konfiguriert ist.
func (s *Summarizer) Enabled() bool {
	return s.client != nil
}

// SummarizeNew fasst die jüngsten Artikel ohne Zusammenfassung zusammen,
// begrenzt auf die konfigurierte Batchgröße. Fehler einzelner Artikel werden
// geloggt und übersprungen.
func (s *Summarizer) SummarizeNew(ctx context.Context) (int, error) {
	if !s.Enabled() {
		s.Logger.Info("Summarizer deaktiviert, kein OpenAI API-Key konfiguriert")
		return 0, nil
	}

	var articles []models.Article
	err := s.DB.Select("articles.id", "articles.title", "articles.abstract").
		Joins("LEFT JOIN article_summaries ON article_summaries.article_id = articles.id").
		Where("article_summaries.id IS NULL").
		Order("articles.publication_date DESC NULLS LAST, articles.id DESC").
		Limit(s.Config.SummaryBatch).
		Find(&articles).Error
	if err != nil {
		return 0, err
	}
	if len(articles) == 0 {
		return 0, nil
	}

	processed := 0
	for _, a := range articles {
		log := s.Logger.With(zap.Uint("article_id", a.ID))

		payload, err := s.callModel(ctx, a.Title, a.Abstract)
		if err != nil {
			log.Warn("Zusammenfassung fehlgeschlagen", zap.Error(err))
			continue
		}

		var bullets []string
		for _, b := range payload.TechnicalSummary {
			if t := strings.TrimSpace(b); t != "" {
				bullets = append(bullets, "- "+t)
			}
		}

		summary := models.ArticleSummary{
			ArticleID:        a.ID,
			Model:            s.Config.OpenAIModel,
			PlainSummary:     strings.TrimSpace(payload.PlainSummary),
			TechnicalSummary: strings.Join(bullets, "\n"),
			Signals:          []byte(payload.Signals),
		}
		err = s.DB.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "article_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"model":             summary.Model,
				"plain_summary":     summary.PlainSummary,
				"technical_summary": summary.TechnicalSummary,
				"signals":           summary.Signals,
			}),
		}).Create(&summary).Error
		if err != nil {
			return processed, err
		}
		processed++
	}

	s.Logger.Info("Zusammenfassungen erstellt", zap.Int("count", processed))
	return processed, nil
}

// callModel ruft das Chat-Completion-API im JSON-Modus auf und parst die
// Antwort; bei kaputtem JSON wird einmal repariert nachgeparst.
func (s *Summarizer) callModel(ctx context.Context, title, abstract string) (*summaryPayload, error) {
	prompt := fmt.Sprintf(summaryPromptTemplate, strings.TrimSpace(title), strings.TrimSpace(abstract))

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.Config.OpenAIModel,
		Temperature: 0.2,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: summarySystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("leere Antwort vom Modell")
	}

	content := resp.Choices[0].Message.Content
	var payload summaryPayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		repaired := RepairJSON(content)
		if err2 := json.Unmarshal([]byte(repaired), &payload); err2 != nil {
			return nil, fmt.Errorf("antwort ist kein valides JSON: %w", err)
		}
	}
	return &payload, nil
}

// RepairJSON holt aus einer beinahe-JSON-Antwort das äußerste Objekt heraus:
// Codefences entfernen, fehlende Klammern um Fragmente ergänzen, dann auf das
// äußerste Klammerpaar zuschneiden.
func RepairJSON(text string) string {
	s := strings.TrimSpace(text)

	if strings.HasPrefix(s, "```") {
		s = strings.Trim(s, "`")
		s = strings.TrimSpace(s)
		if idx := strings.Index(s, "\n"); idx != -1 {
			first := strings.ToLower(strings.TrimSpace(s[:idx]))
			if strings.HasPrefix(first, "json") {
				s = strings.TrimSpace(s[idx+1:])
			}
		}
	}

	if strings.HasPrefix(s, `"plain_summary"`) || strings.HasPrefix(s, "'plain_summary'") {
		s = "{\n" + s + "\n}"
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end != -1 && end > start {
		s = s[start : end+1]
	}
	return s
}
