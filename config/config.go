package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all configuration parameters read from environment variables.
type Config struct {
	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" required:"true"`

	HTTPPort string `envconfig:"HTTP_PORT" default:"4242"`

	// Directory the crawl step writes its raw JSON snapshots to and the
	// populate step reads them from.
	DataDir string `envconfig:"DATA_DIR" default:"./data"`

	HKdirBaseURL string `envconfig:"HKDIR_BASE_URL" default:"https://dbh.hkdir.no/api/Tabeller/hentJSONTabellData"`
	// Number of most recent years of grade statistics to request.
	GradeYears int `envconfig:"GRADE_YEARS" default:"10"`

	NTNUBaseURL string `envconfig:"NTNU_BASE_URL" default:"https://www.ntnu.no/studier/emner"`
	// Worker budget for the catalog enricher. The site is rate-limit
	// friendly but not infinitely so.
	CrawlConcurrency int `envconfig:"CRAWL_CONCURRENCY" default:"10"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 3 * * *"`

	// Optional raw-snapshot archive. Archiving is skipped entirely when
	// the bucket is left empty.
	ArchiveS3Key    string `envconfig:"ARCHIVE_S3_KEY"`
	ArchiveS3Secret string `envconfig:"ARCHIVE_S3_SECRET"`
	ArchiveS3URL    string `envconfig:"ARCHIVE_S3_URL"`
	ArchiveS3Region string `envconfig:"ARCHIVE_S3_REGION"`
	ArchiveS3Bucket string `envconfig:"ARCHIVE_S3_BUCKET"`
}

// DSN returns the data source name for the PostgreSQL connection.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort)
}

// ArchiveEnabled reports whether raw crawl snapshots should be uploaded to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveS3Bucket != ""
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
