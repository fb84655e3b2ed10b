package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	PubMedBaseURL string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey  string `envconfig:"PUBMED_API_KEY"`

	CTGBaseURL string `envconfig:"CTG_BASE_URL" default:"https://clinicaltrials.gov/api/v2"`

	EuropePMCBaseURL string `envconfig:"EUROPEPMC_BASE_URL" default:"https://www.ebi.ac.uk/europepmc/webservices/rest"`

	// Harvest-Grenzen: Seitengröße, maximale Seiten pro Query, Retries pro Seite.
	PageSize       int     `envconfig:"HARVEST_PAGE_SIZE" default:"50"`
	MaxPages       int     `envconfig:"HARVEST_MAX_PAGES" default:"4"`
	FetchRetries   int     `envconfig:"HARVEST_FETCH_RETRIES" default:"3"`
	RequestsPerSec float64 `envconfig:"HARVEST_REQUESTS_PER_SEC" default:"3"`

	RequestTimeout time.Duration `envconfig:"HARVEST_REQUEST_TIMEOUT" default:"60s"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 0 * * *"`

	// Summarizer (optional; ohne API-Key bleibt der Dienst deaktiviert).
	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	SummaryBatch int    `envconfig:"SUMMARY_BATCH" default:"5"`

	// Provider-Konfiguration
	EnabledProviders string `envconfig:"ENABLED_PROVIDERS" default:"pubmed,clinicaltrials,europepmc"`
}

// DSN gibt den Data Source Name für die PostgreSQL-Verbindung zurück.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
