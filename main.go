package main

import (
	"context"
	"log"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gradestats/config"
	"gradestats/models"
	"gradestats/providers/hkdir"
	"gradestats/providers/ntnu"
	"gradestats/services"
	"gradestats/storage"
)

// app bundles the shared process state every command needs.
type app struct {
	cfg *config.Config
	db  *gorm.DB
	log *zap.Logger
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

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to grade database.")

	a := &app{cfg: cfg, db: db, log: logging}

	root := &cobra.Command{
		Use:   "gradestats",
		Short: "Crawl and serve Norwegian university grade statistics",
	}
	root.AddCommand(
		migrateCmd(a),
		crawlCmd(a),
		populateCmd(a),
		crawlNTNUCmd(a),
		universityCmd(a),
		deployProdCmd(a),
		serveCmd(a),
	)

	if err := root.Execute(); err != nil {
		logging.Fatal("Command failed", zap.Error(err))
	}
}

func migrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runMigrate(a); err != nil {
				a.log.Fatal("Migration failed", zap.Error(err))
			}
		},
	}
}

func crawlCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl",
		Short: "Fetch department, subject and grade snapshots from HKdir",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runCrawl(cmd.Context(), a); err != nil {
				a.log.Fatal("Crawl failed", zap.Error(err))
			}
		},
	}
}

func populateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "populate",
		Short: "Load the crawled snapshots into the database",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runPopulate(cmd.Context(), a); err != nil {
				a.log.Fatal("Populate failed", zap.Error(err))
			}
		},
	}
}

func crawlNTNUCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "crawl-ntnu",
		Short: "Enrich subjects with metadata from the NTNU course catalog",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runEnrich(cmd.Context(), a); err != nil {
				a.log.Fatal("Catalog enrichment failed", zap.Error(err))
			}
		},
	}
}

func universityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "university",
		Short: "Backfill university links on existing departments",
		Run: func(cmd *cobra.Command, args []string) {
			if err := runUniversityBackfill(cmd.Context(), a); err != nil {
				a.log.Fatal("University backfill failed", zap.Error(err))
			}
		},
	}
}

func deployProdCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy-prod",
		Short: "Run the full pipeline: migrate, crawl, populate, enrich",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			if err := runMigrate(a); err != nil {
				a.log.Fatal("Migration failed", zap.Error(err))
			}
			if err := runCrawl(ctx, a); err != nil {
				a.log.Fatal("Crawl failed", zap.Error(err))
			}
			if err := runPopulate(ctx, a); err != nil {
				a.log.Fatal("Populate failed", zap.Error(err))
			}
			if err := runEnrich(ctx, a); err != nil {
				a.log.Fatal("Catalog enrichment failed", zap.Error(err))
			}
			a.log.Info("Full pipeline completed.")
		},
	}
}

func serveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read API and run the scheduled re-crawl",
		Run: func(cmd *cobra.Command, args []string) {
			runServer(a)
		},
	}
}

func runMigrate(a *app) error {
	a.log.Info("Running database auto-migration...")
	return a.db.AutoMigrate(
		&models.University{},
		&models.Department{},
		&models.Subject{},
		&models.SubjectSemesterGrade{},
	)
}

func runCrawl(ctx context.Context, a *app) error {
	var s3Client *s3.Client
	if a.cfg.ArchiveEnabled() {
		var err error
		s3Client, err = storage.NewS3Client(ctx, a.cfg)
		if err != nil {
			return err
		}
	}
	crawl := services.NewCrawlService(a.cfg, a.log, hkdir.NewFetcher(a.cfg, a.log), s3Client)
	return crawl.Run(ctx)
}

func runPopulate(ctx context.Context, a *app) error {
	institutions := services.NewInstitutionService(a.db, a.log)
	if err := institutions.RegisterUniversities(ctx); err != nil {
		return err
	}
	if err := institutions.RegisterDepartmentsFromFile(ctx, services.SnapshotPath(a.cfg, services.FileDepartments)); err != nil {
		return err
	}

	subjects := services.NewSubjectService(a.db, a.log)
	subjectReport, err := subjects.RegisterFromFile(ctx, services.SnapshotPath(a.cfg, services.FileSubjects))
	if err != nil {
		return err
	}
	subjectsRegisteredCounter.Add(float64(subjectReport.Inserted))

	grades := services.NewGradeService(a.db, a.log)
	gradeReport, err := grades.RegisterFromFile(ctx, services.SnapshotPath(a.cfg, services.FileGrades))
	if err != nil {
		return err
	}
	gradeRowsCreatedCounter.Add(float64(gradeReport.Created))
	gradeRowsUpdatedCounter.Add(float64(gradeReport.Updated))
	return nil
}

func runEnrich(ctx context.Context, a *app) error {
	enricher := services.NewEnricherService(a.db, a.log, ntnu.NewFetcher(a.cfg, a.log), a.cfg.CrawlConcurrency)
	report, err := enricher.CrawlAll(ctx)
	if err != nil {
		return err
	}
	pagesEnrichedCounter.Add(float64(report.Succeeded))
	return nil
}

func runUniversityBackfill(ctx context.Context, a *app) error {
	institutions := services.NewInstitutionService(a.db, a.log)
	updated, err := institutions.BackfillFromFile(ctx, a.cfg)
	if err != nil {
		return err
	}
	a.log.Info("University backfill completed", zap.Int("updated", updated))
	return nil
}
