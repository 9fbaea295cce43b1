package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gradestats/models"
	"gradestats/providers/hkdir"
)

// insertBatchSize bounds the number of rows per bulk insert and the number
// of keys per batched existence query.
const insertBatchSize = 1000

// SubjectReport summarizes one registration run. Rows that failed on their
// own (bad study-point text) are collected here instead of aborting the
// batch; only referential failures abort.
type SubjectReport struct {
	Inserted        int
	SkippedExisting int
	RowErrors       []error
}

// SubjectService registers course entities. Registration is insert-only:
// a subject code that already exists in the store is never touched.
type SubjectService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewSubjectService creates a new instance of the SubjectService.
func NewSubjectService(db *gorm.DB, logger *zap.Logger) *SubjectService {
	return &SubjectService{DB: db, Logger: logger}
}

// RegisterFromFile loads the raw subject snapshot and registers it.
func (s *SubjectService) RegisterFromFile(ctx context.Context, path string) (*SubjectReport, error) {
	rows, err := loadRows[hkdir.SubjectRow](path)
	if err != nil {
		return nil, err
	}
	return s.Register(ctx, rows)
}

// Register deduplicates raw subject rows by course code (first occurrence
// wins), resolves the owning department for every new code, and bulk-inserts
// the result. An unresolvable department aborts the registration: subjects
// must never be created against a department that does not exist.
func (s *SubjectService) Register(ctx context.Context, rows []hkdir.SubjectRow) (*SubjectReport, error) {
	db := s.DB.WithContext(ctx)
	report := &SubjectReport{}

	unique := make([]hkdir.SubjectRow, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.SubjectCode]; ok {
			continue
		}
		seen[row.SubjectCode] = struct{}{}
		unique = append(unique, row)
	}
	s.Logger.Info("Registering subjects", zap.Int("rows", len(rows)), zap.Int("unique", len(unique)))

	codes := make([]string, 0, len(unique))
	for _, row := range unique {
		codes = append(codes, row.SubjectCode)
	}
	existing, err := s.existingSubjectIDs(db, codes)
	if err != nil {
		return nil, err
	}

	departments, err := s.departmentIDs(db)
	if err != nil {
		return nil, err
	}

	var toInsert []models.Subject
	for _, row := range unique {
		if _, ok := existing[row.SubjectCode]; ok {
			report.SkippedExisting++
			continue
		}

		if _, ok := departments[row.DepartmentCode]; !ok {
			return nil, fmt.Errorf("did not find matching department %s for subject %s (%s)",
				row.DepartmentCode, row.SubjectCode, row.SubjectName)
		}

		points, err := parseStudyPoints(row.StudyPoints)
		if err != nil {
			report.RowErrors = append(report.RowErrors,
				fmt.Errorf("subject %s: %w", row.SubjectCode, err))
			continue
		}

		toInsert = append(toInsert, models.Subject{
			ID:          row.SubjectCode,
			Name:        row.SubjectName,
			Level:       row.LevelCode,
			Language:    row.Language,
			StudyPoints: points,
			InstituteID: row.DepartmentCode,
		})
	}

	if len(toInsert) > 0 {
		// Duplicate skipping at the store level is the final safety net
		// against concurrent runs racing the existence check.
		err := db.Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(toInsert, insertBatchSize).Error
		if err != nil {
			return nil, fmt.Errorf("bulk insert of subjects failed: %w", err)
		}
	}
	report.Inserted = len(toInsert)

	s.Logger.Info("Subject registration completed",
		zap.Int("inserted", report.Inserted),
		zap.Int("skipped_existing", report.SkippedExisting),
		zap.Int("row_errors", len(report.RowErrors)))
	return report, nil
}

// existingSubjectIDs fetches the subset of the given codes that already
// exist, in chunked queries to bound the IN-clause payload.
func (s *SubjectService) existingSubjectIDs(db *gorm.DB, codes []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{}, len(codes))
	for start := 0; start < len(codes); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(codes) {
			end = len(codes)
		}
		var ids []string
		err := db.Model(&models.Subject{}).Where("id IN ?", codes[start:end]).Pluck("id", &ids).Error
		if err != nil {
			return nil, fmt.Errorf("could not query existing subjects: %w", err)
		}
		for _, id := range ids {
			existing[id] = struct{}{}
		}
	}
	return existing, nil
}

func (s *SubjectService) departmentIDs(db *gorm.DB) (map[string]struct{}, error) {
	var ids []string
	if err := db.Model(&models.Department{}).Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("could not query departments: %w", err)
	}
	departments := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		departments[id] = struct{}{}
	}
	return departments, nil
}

// parseStudyPoints parses the credit-point value from its decimal text
// form. The source uses both dot and comma as decimal separators.
func parseStudyPoints(text string) (float64, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	points, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed study points %q", text)
	}
	return points, nil
}
