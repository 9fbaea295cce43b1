package services

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gradestats/models"
	"gradestats/providers/ntnu"
)

// TaskFailure records one subject whose enrichment failed.
type TaskFailure struct {
	SubjectID string
	Err       error
}

// EnrichReport is the completion summary of one enrichment run. Individual
// page failures do not cancel sibling tasks; they are collected so the
// caller can see which subjects need another pass.
type EnrichReport struct {
	Succeeded int
	Failures  []TaskFailure
}

// EnricherService crawls the course catalog for every known subject and
// overwrites the subject's enrichment fields with whatever the page yields,
// including nulls when the page has no info for the academic year.
type EnricherService struct {
	DB          *gorm.DB
	Logger      *zap.Logger
	Fetcher     *ntnu.Fetcher
	Concurrency int
}

// NewEnricherService creates a new instance of the EnricherService.
func NewEnricherService(db *gorm.DB, logger *zap.Logger, fetcher *ntnu.Fetcher, concurrency int) *EnricherService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &EnricherService{DB: db, Logger: logger, Fetcher: fetcher, Concurrency: concurrency}
}

// CrawlAll enriches every subject in the store through a fixed-width worker
// pool. The run is complete when the job channel has drained and every
// in-flight fetch has settled.
func (s *EnricherService) CrawlAll(ctx context.Context) (*EnrichReport, error) {
	db := s.DB.WithContext(ctx)

	var ids []string
	if err := db.Model(&models.Subject{}).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("could not list subjects: %w", err)
	}
	s.Logger.Info("Starting catalog enrichment",
		zap.Int("subjects", len(ids)), zap.Int("concurrency", s.Concurrency))

	jobs := make(chan string)
	report := &EnrichReport{}
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < s.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for subjectID := range jobs {
				err := s.enrichSubject(ctx, subjectID)

				mu.Lock()
				if err != nil {
					report.Failures = append(report.Failures, TaskFailure{SubjectID: subjectID, Err: err})
				} else {
					report.Succeeded++
				}
				mu.Unlock()
			}
		}()
	}

	for _, id := range ids {
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	s.Logger.Info("Catalog enrichment completed",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", len(report.Failures)))
	for _, failure := range report.Failures {
		s.Logger.Warn("Enrichment failed for subject",
			zap.String("subject_id", failure.SubjectID), zap.Error(failure.Err))
	}
	return report, nil
}

// enrichSubject fetches one catalog page and overwrites the subject's
// enrichment fields. The update goes through a column map so that nil
// pointers null out stale values from earlier runs.
func (s *EnricherService) enrichSubject(ctx context.Context, subjectID string) error {
	meta, err := s.Fetcher.FetchMetadata(ctx, subjectID)
	if err != nil {
		return err
	}

	err = s.DB.WithContext(ctx).Model(&models.Subject{}).Where("id = ?", subjectID).
		Updates(map[string]interface{}{
			"course_content":   meta.CourseContent,
			"learning_goals":   meta.LearningGoals,
			"study_level":      meta.StudyLevel,
			"taught_in_autumn": meta.TaughtInAutumn,
			"taught_in_spring": meta.TaughtInSpring,
			"place_of_study":   meta.PlaceOfStudy,
		}).Error
	if err != nil {
		return fmt.Errorf("could not update subject %s: %w", subjectID, err)
	}
	return nil
}
