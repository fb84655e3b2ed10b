package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"neuro-harvest/config"
	"neuro-harvest/models"
	"neuro-harvest/providers"
	"neuro-harvest/providers/clinicaltrials"
	"neuro-harvest/providers/europepmc"
	"neuro-harvest/providers/pubmed"
	"neuro-harvest/services"
	"neuro-harvest/storage"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	// Setup Database Connection
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to harvest database.")

	// Auto-Migration
	logging.Info("Running database auto-migration...")
	db.AutoMigrate(
		&models.Source{}, &models.SearchQuery{}, &models.ScannerState{}, &models.FetchRun{},
		&models.Article{}, &models.Author{}, &models.ArticleAuthor{},
		&models.Trial{}, &models.Intervention{}, &models.TrialIntervention{},
		&models.Tag{}, &models.ArticleTag{},
		&models.ArticleScore{}, &models.ArticleSummary{},
	)

	// Seeding
	seedDefaultSources(db, cfg, logging)
	seedDefaultSearchQueries(db, logging)

	// Setup Providers
	enabledProviderNames := strings.Split(cfg.EnabledProviders, ",")
	var enabledProviders []providers.Provider
	for _, name := range enabledProviderNames {
		switch strings.TrimSpace(name) {
		case "pubmed":
			enabledProviders = append(enabledProviders, pubmed.NewFetcher(cfg, logging))
		case "clinicaltrials":
			enabledProviders = append(enabledProviders, clinicaltrials.NewFetcher(cfg, logging))
		case "europepmc":
			enabledProviders = append(enabledProviders, europepmc.NewFetcher(cfg, logging))
		default:
			logging.Warn("Unknown provider in config", zap.String("provider_name", name))
		}
	}
	if len(enabledProviders) == 0 {
		logging.Fatal("No valid providers enabled. Check ENABLED_PROVIDERS in .env")
	}
	logging.Info("Active providers loaded", zap.Strings("providers", enabledProviderNames))

	// Setup Services
	store := storage.NewStore(db, logging)
	harvester := services.NewHarvester(cfg, logging, store, enabledProviders)
	tagger := services.NewTagger(db, logging)
	scorer := services.NewScorer(db, logging)
	summarizer := services.NewSummarizer(cfg, logging, db)

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Setup Routes
	setupArticleRoutes(router, db, logging)
	setupTrialRoutes(router, db, logging)
	setupRunRoutes(router, db, logging)
	setupSearchQueryRoutes(router, db, logging)
	setupHarvestRoutes(router, harvester, logging)
	setupAnalysisRoutes(router, tagger, scorer, summarizer, logging)

	// Setup Cron: Harvest, danach Tagging, Scoring und Zusammenfassungen.
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.CronSchedule, func() {
		logging.Info("Running scheduled harvest job...")
		harvester.RunAll(context.Background())
		if _, err := tagger.TagAll(); err != nil {
			logging.Error("Scheduled tagging failed", zap.Error(err))
		}
		if _, err := scorer.ScoreAll(); err != nil {
			logging.Error("Scheduled scoring failed", zap.Error(err))
		}
		if _, err := summarizer.SummarizeNew(context.Background()); err != nil {
			logging.Error("Scheduled summarization failed", zap.Error(err))
		}
		logging.Info("Scheduled harvest job completed.")
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupArticleRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/articles")

	// Einfacher GET-Endpunkt für die jüngsten Artikel
	rg.GET("/", func(c *gin.Context) {
		var articles []models.Article
		if err := db.Order("publication_date DESC NULLS LAST").Limit(100).Find(&articles).Error; err != nil {
			log.Error("Database query for articles failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, articles)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var article models.Article
		if err := db.First(&article, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "article not found"})
				return
			}
			log.Error("DB error fetching article", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, article)
	})

	// Body-gesteuerter Endpunkt für komplexe Abfragen
	rg.POST("/query", func(c *gin.Context) {
		type ArticleQuery struct {
			Journal  string `json:"journal"`
			Tag      string `json:"tag"`
			MinScore *float64 `json:"min_score"`
			Limit    int    `json:"limit"`
		}

		var req ArticleQuery
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}

		query := db.Model(&models.Article{})
		if req.Journal != "" {
			query = query.Where("journal ILIKE ?", "%"+req.Journal+"%")
		}
		if req.Tag != "" {
			query = query.
				Joins("JOIN article_tags ON article_tags.article_id = articles.id").
				Joins("JOIN tags ON tags.id = article_tags.tag_id").
				Where("tags.name = ?", req.Tag)
		}
		if req.MinScore != nil {
			query = query.
				Joins("JOIN article_scores ON article_scores.article_id = articles.id").
				Where("article_scores.total_score >= ?", *req.MinScore)
		}
		if req.Limit > 0 {
			query = query.Limit(req.Limit)
		}

		var articles []models.Article
		if err := query.Order("articles.publication_date DESC NULLS LAST").Find(&articles).Error; err != nil {
			log.Error("Database query for articles failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, articles)
	})
}

func setupTrialRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/trials")

	rg.GET("/", func(c *gin.Context) {
		var trials []models.Trial
		if err := db.Order("updated_at DESC").Limit(100).Find(&trials).Error; err != nil {
			log.Error("Database query for trials failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, trials)
	})

	// Abgebrochene Studien sind die interessanten Repurposing-Kandidaten.
	rg.GET("/abandoned", func(c *gin.Context) {
		statuses := make([]string, 0, len(models.AbandonedStatuses))
		for s := range models.AbandonedStatuses {
			statuses = append(statuses, s)
		}
		var trials []models.Trial
		if err := db.Where("status IN ?", statuses).Order("completion_date DESC NULLS LAST").Find(&trials).Error; err != nil {
			log.Error("Database query for abandoned trials failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, trials)
	})

	rg.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		var trial models.Trial
		if err := db.First(&trial, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "trial not found"})
				return
			}
			log.Error("DB error fetching trial", zap.String("id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, trial)
	})
}

func setupRunRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/runs")

	rg.GET("/", func(c *gin.Context) {
		var runs []models.FetchRun
		if err := db.Order("started_at DESC").Limit(50).Find(&runs).Error; err != nil {
			log.Error("Database query for runs failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, runs)
	})

	// Wassermarken aller Quellen, für den Betriebsüberblick.
	rg.GET("/watermarks", func(c *gin.Context) {
		var states []models.ScannerState
		if err := db.Find(&states).Error; err != nil {
			log.Error("Database query for watermarks failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, states)
	})
}

func setupSearchQueryRoutes(router *gin.Engine, db *gorm.DB, log *zap.Logger) {
	rg := router.Group("/search-queries")

	rg.POST("/", func(c *gin.Context) {
		var query models.SearchQuery
		if err := c.ShouldBindJSON(&query); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if err := db.Create(&query).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create search query"})
			return
		}
		c.JSON(http.StatusCreated, query)
	})

	rg.GET("/", func(c *gin.Context) {
		var queries []models.SearchQuery
		if err := db.Find(&queries).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, queries)
	})
}

func setupHarvestRoutes(router *gin.Engine, harvester *services.Harvester, log *zap.Logger) {
	rg := router.Group("/harvest")

	rg.POST("/all", func(c *gin.Context) {
		go harvester.RunAll(context.Background())
		c.JSON(http.StatusAccepted, gin.H{"message": "Harvest for all sources triggered."})
	})

	rg.POST("/source/:name", func(c *gin.Context) {
		name := c.Param("name")
		go func() {
			if err := harvester.RunSourceByName(context.Background(), name); err != nil {
				log.Error("Async single-source harvest failed",
					zap.String("source", name), zap.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": fmt.Sprintf("Harvest for source %s triggered.", name)})
	})
}

func setupAnalysisRoutes(router *gin.Engine, tagger *services.Tagger, scorer *services.Scorer, summarizer *services.Summarizer, log *zap.Logger) {
	rg := router.Group("/analysis")

	rg.POST("/tag", func(c *gin.Context) {
		count, err := tagger.TagAll()
		if err != nil {
			log.Error("Tagging failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "tagging failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tagged": count})
	})

	rg.POST("/score", func(c *gin.Context) {
		count, err := scorer.ScoreAll()
		if err != nil {
			log.Error("Scoring failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "scoring failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"scored": count})
	})

	rg.POST("/summarize", func(c *gin.Context) {
		if !summarizer.Enabled() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summarizer disabled, no API key configured"})
			return
		}
		go func() {
			if _, err := summarizer.SummarizeNew(context.Background()); err != nil {
				log.Error("Async summarization failed", zap.Error(err))
			}
		}()
		c.JSON(http.StatusAccepted, gin.H{"message": "Summarization triggered."})
	})
}

func seedDefaultSources(db *gorm.DB, cfg *config.Config, logger *zap.Logger) {
	var count int64
	db.Model(&models.Source{}).Count(&count)
	if count > 0 {
		return
	}
	sources := []models.Source{
		{Name: "pubmed", BaseURL: cfg.PubMedBaseURL},
		{Name: "clinicaltrials", BaseURL: cfg.CTGBaseURL},
		{Name: "europepmc", BaseURL: cfg.EuropePMCBaseURL},
	}
	if err := db.Create(&sources).Error; err != nil {
		logger.Warn("Failed to seed default sources", zap.Error(err))
	} else {
		logger.Info("Default sources seeded.")
	}
}

func seedDefaultSearchQueries(db *gorm.DB, logger *zap.Logger) {
	var count int64
	db.Model(&models.SearchQuery{}).Count(&count)
	if count > 0 {
		return
	}
	queries := []models.SearchQuery{
		{SourceName: "pubmed", Name: "Parkinson", Term: `"parkinson disease"[MeSH Terms] OR parkinson*[Title/Abstract]`},
		{SourceName: "pubmed", Name: "Alzheimer", Term: `"alzheimer disease"[MeSH Terms] OR alzheimer*[Title/Abstract]`},
		{SourceName: "clinicaltrials", Name: "Parkinson", Term: "Parkinson"},
		{SourceName: "clinicaltrials", Name: "Alzheimer", Term: "Alzheimer"},
		{SourceName: "clinicaltrials", Name: "Abandoned Neuro", Term: "(Parkinson OR Alzheimer) AND (terminated OR withdrawn)"},
		{SourceName: "europepmc", Name: "Parkinson", Term: `TITLE_ABS:"parkinson"`},
		{SourceName: "europepmc", Name: "Alzheimer", Term: `TITLE_ABS:"alzheimer"`},
	}
	if err := db.Create(&queries).Error; err != nil {
		logger.Warn("Failed to seed default search queries", zap.Error(err))
	} else {
		logger.Info("Default search queries seeded.")
	}
}
