package services

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"gradestats/config"
	"gradestats/providers/hkdir"
	"gradestats/storage"
)

// CrawlService orchestrates the raw data fetch: three HKdir datasets
// streamed into the data directory, optionally archived to S3 so a crawl
// can be inspected or replayed later. It never touches the store.
type CrawlService struct {
	Config   *config.Config
	Logger   *zap.Logger
	Fetcher  *hkdir.Fetcher
	S3Client *s3.Client
}

// NewCrawlService creates a new instance of the CrawlService. The S3
// client may be nil when archiving is disabled.
func NewCrawlService(cfg *config.Config, logger *zap.Logger, fetcher *hkdir.Fetcher, s3Client *s3.Client) *CrawlService {
	return &CrawlService{Config: cfg, Logger: logger, Fetcher: fetcher, S3Client: s3Client}
}

// Run fetches the department, subject and grade datasets.
func (s *CrawlService) Run(ctx context.Context) error {
	if err := os.MkdirAll(s.Config.DataDir, 0o755); err != nil {
		return fmt.Errorf("could not create data dir %s: %w", s.Config.DataDir, err)
	}

	institutions := UniversityCodes()

	fetches := []struct {
		query hkdir.Query
		file  string
	}{
		{hkdir.DepartmentsQuery(institutions), FileDepartments},
		{hkdir.SubjectsQuery(institutions), FileSubjects},
		{hkdir.GradesQuery(institutions, s.Config.GradeYears), FileGrades},
	}
	for _, fetch := range fetches {
		if err := s.Fetcher.FetchToFile(ctx, fetch.query, SnapshotPath(s.Config, fetch.file)); err != nil {
			return err
		}
	}

	if s.Config.ArchiveEnabled() && s.S3Client != nil {
		if err := s.archiveSnapshots(ctx); err != nil {
			// Archiving is a convenience; the crawl itself succeeded.
			s.Logger.Error("Snapshot archive upload failed", zap.Error(err))
		}
	}
	return nil
}

// archiveSnapshots bundles the three snapshot files into a tar.gz and
// uploads it under a timestamped key.
func (s *CrawlService) archiveSnapshots(ctx context.Context) error {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, name := range []string{FileDepartments, FileSubjects, FileGrades} {
		data, err := os.ReadFile(SnapshotPath(s.Config, name))
		if err != nil {
			return err
		}
		header := &tar.Header{
			Name:    name,
			Mode:    0o644,
			Size:    int64(len(data)),
			ModTime: time.Now(),
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			return err
		}
		if _, err := tarWriter.Write(data); err != nil {
			return err
		}
	}
	if err := tarWriter.Close(); err != nil {
		return err
	}
	if err := gzipWriter.Close(); err != nil {
		return err
	}

	key := fmt.Sprintf("crawl-%s.tar.gz", time.Now().UTC().Format("2006-01-02T15-04-05Z"))
	link, err := storage.UploadFile(ctx, s.S3Client, s.Config.ArchiveS3Bucket, key, buf.Bytes(), s.Config)
	if err != nil {
		return err
	}
	s.Logger.Info("Raw snapshots archived", zap.String("link", link))
	return nil
}
