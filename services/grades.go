package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"gradestats/models"
	"gradestats/providers/hkdir"
)

// updateConcurrency bounds the fan-out of the per-row update phase. Every
// update targets a distinct primary key, so the writes never conflict.
const updateConcurrency = 8

// gradeKey is the business key of an aggregate row.
type gradeKey struct {
	SubjectID string
	Year      int
	Semester  int
}

// GradeReport summarizes one aggregation run.
type GradeReport struct {
	Created        int
	Updated        int
	SkippedOrphans int
	RowErrors      []error
}

// GradeService aggregates raw per-symbol grade rows into one row per
// subject and semester. Aggregation is idempotent: a run computes the
// counters from scratch and overwrites whatever the store holds for the
// same key, so replaying the same input never double-counts.
type GradeService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewGradeService creates a new instance of the GradeService.
func NewGradeService(db *gorm.DB, logger *zap.Logger) *GradeService {
	return &GradeService{DB: db, Logger: logger}
}

// RegisterFromFile loads the raw grade snapshot and aggregates it.
func (s *GradeService) RegisterFromFile(ctx context.Context, path string) (*GradeReport, error) {
	rows, err := loadRows[hkdir.GradeRow](path)
	if err != nil {
		return nil, err
	}
	return s.Register(ctx, rows)
}

// Register runs the four aggregation phases: filter rows against the known
// subject set, group them in memory, create placeholder rows for unseen
// keys, then overwrite every key's counters.
//
// The two-phase create/update split exists because the bulk insert cannot
// return generated primary keys; the keys are recovered by re-reading the
// existence map before the update fan-out.
func (s *GradeService) Register(ctx context.Context, rows []hkdir.GradeRow) (*GradeReport, error) {
	db := s.DB.WithContext(ctx)
	report := &GradeReport{}

	s.Logger.Info("Aggregating grades", zap.Int("rows", len(rows)))

	known, err := s.knownSubjectIDs(db, rows)
	if err != nil {
		return nil, err
	}

	groups := s.groupRows(rows, known, report)
	s.Logger.Info("Grouped grade rows",
		zap.Int("groups", len(groups)),
		zap.Int("skipped_orphans", report.SkippedOrphans),
		zap.Int("row_errors", len(report.RowErrors)))

	keys := make([]gradeKey, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}

	existing, err := s.existingGradeIDs(db, keys)
	if err != nil {
		return nil, err
	}

	var toCreate []models.SubjectSemesterGrade
	for _, key := range keys {
		if _, ok := existing[key]; ok {
			continue
		}
		toCreate = append(toCreate, models.SubjectSemesterGrade{
			SubjectID: key.SubjectID,
			Year:      key.Year,
			Semester:  key.Semester,
		})
	}
	if len(toCreate) > 0 {
		err := db.Clauses(clause.OnConflict{DoNothing: true}).
			CreateInBatches(toCreate, insertBatchSize).Error
		if err != nil {
			return nil, fmt.Errorf("bulk create of grade rows failed: %w", err)
		}
	}
	report.Created = len(toCreate)
	s.Logger.Info("Created placeholder grade rows", zap.Int("created", report.Created))

	// The create phase assigned primary keys; re-read the now-complete map
	// before targeting row-level updates.
	existing, err = s.existingGradeIDs(db, keys)
	if err != nil {
		return nil, err
	}

	updated, err := s.updateGroups(db, groups, existing)
	report.Updated = updated
	if err != nil {
		return report, err
	}

	s.Logger.Info("Grade aggregation completed",
		zap.Int("created", report.Created),
		zap.Int("updated", report.Updated))
	return report, nil
}

// knownSubjectIDs loads the subset of referenced subject codes that exist
// in the store. Grade data routinely covers subjects outside the crawl
// scope; those rows are filtered, not errors.
func (s *GradeService) knownSubjectIDs(db *gorm.DB, rows []hkdir.GradeRow) (map[string]struct{}, error) {
	seen := make(map[string]struct{}, len(rows))
	codes := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.SubjectCode]; ok {
			continue
		}
		seen[row.SubjectCode] = struct{}{}
		codes = append(codes, row.SubjectCode)
	}

	known := make(map[string]struct{}, len(codes))
	for start := 0; start < len(codes); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(codes) {
			end = len(codes)
		}
		var ids []string
		err := db.Model(&models.Subject{}).Where("id IN ?", codes[start:end]).Pluck("id", &ids).Error
		if err != nil {
			return nil, fmt.Errorf("could not query known subjects: %w", err)
		}
		for _, id := range ids {
			known[id] = struct{}{}
		}
	}
	return known, nil
}

// groupRows builds the in-memory aggregation. Each raw row contributes its
// candidate count to one grade slot and to the group's participant total; a
// malformed numeric field fails only that row.
func (s *GradeService) groupRows(rows []hkdir.GradeRow, known map[string]struct{}, report *GradeReport) map[gradeKey]*models.SubjectSemesterGrade {
	groups := make(map[gradeKey]*models.SubjectSemesterGrade)

	for _, row := range rows {
		if _, ok := known[row.SubjectCode]; !ok {
			report.SkippedOrphans++
			continue
		}

		year, err := strconv.Atoi(strings.TrimSpace(row.Year))
		if err != nil {
			report.RowErrors = append(report.RowErrors,
				fmt.Errorf("grade row %s: malformed year %q", row.SubjectCode, row.Year))
			continue
		}
		semester, err := strconv.Atoi(strings.TrimSpace(row.Semester))
		if err != nil {
			report.RowErrors = append(report.RowErrors,
				fmt.Errorf("grade row %s: malformed semester %q", row.SubjectCode, row.Semester))
			continue
		}
		count, err := strconv.Atoi(strings.TrimSpace(row.Candidates))
		if err != nil {
			report.RowErrors = append(report.RowErrors,
				fmt.Errorf("grade row %s: malformed candidate count %q", row.SubjectCode, row.Candidates))
			continue
		}

		key := gradeKey{SubjectID: row.SubjectCode, Year: year, Semester: semester}
		group, ok := groups[key]
		if !ok {
			group = &models.SubjectSemesterGrade{SubjectID: key.SubjectID, Year: year, Semester: semester}
			groups[key] = group
		}

		// Symbols A-F are the letter scheme, G/H the pass/fail scheme. An
		// unknown symbol still counts toward the participant total.
		switch strings.ToUpper(strings.TrimSpace(row.Symbol)) {
		case "A":
			group.GradeA += count
		case "B":
			group.GradeB += count
		case "C":
			group.GradeC += count
		case "D":
			group.GradeD += count
		case "E":
			group.GradeE += count
		case "F":
			group.GradeF += count
		case "G":
			group.GradePass += count
		case "H":
			group.GradeFail += count
		}
		group.ParticipantsTotal += count
	}
	return groups
}

// existingGradeIDs resolves business keys to primary keys in chunked
// queries, 1000 keys per round trip.
func (s *GradeService) existingGradeIDs(db *gorm.DB, keys []gradeKey) (map[gradeKey]uint, error) {
	existing := make(map[gradeKey]uint, len(keys))

	for start := 0; start < len(keys); start += insertBatchSize {
		end := start + insertBatchSize
		if end > len(keys) {
			end = len(keys)
		}

		tuples := make([][]interface{}, 0, end-start)
		for _, key := range keys[start:end] {
			tuples = append(tuples, []interface{}{key.SubjectID, key.Year, key.Semester})
		}

		var matches []models.SubjectSemesterGrade
		err := db.Select("id", "subject_id", "year", "semester").
			Where("(subject_id, year, semester) IN ?", tuples).
			Find(&matches).Error
		if err != nil {
			return nil, fmt.Errorf("could not query existing grade rows: %w", err)
		}
		for _, match := range matches {
			existing[gradeKey{SubjectID: match.SubjectID, Year: match.Year, Semester: match.Semester}] = match.ID
		}
	}
	return existing, nil
}

// updateGroups writes every group's counters onto its row, fanned out
// behind a semaphore since each update touches a distinct key.
func (s *GradeService) updateGroups(db *gorm.DB, groups map[gradeKey]*models.SubjectSemesterGrade, existing map[gradeKey]uint) (int, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var firstErr error
	updated := 0
	semaphore := make(chan struct{}, updateConcurrency)

	for key, group := range groups {
		id, ok := existing[key]
		if !ok {
			continue
		}

		wg.Add(1)
		semaphore <- struct{}{}

		go func(id uint, group *models.SubjectSemesterGrade) {
			defer wg.Done()
			defer func() { <-semaphore }()

			err := db.Model(&models.SubjectSemesterGrade{}).Where("id = ?", id).
				Updates(map[string]interface{}{
					"grade_a":            group.GradeA,
					"grade_b":            group.GradeB,
					"grade_c":            group.GradeC,
					"grade_d":            group.GradeD,
					"grade_e":            group.GradeE,
					"grade_f":            group.GradeF,
					"grade_pass":         group.GradePass,
					"grade_fail":         group.GradeFail,
					"participants_total": group.ParticipantsTotal,
				}).Error

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("could not update grade row %d: %w", id, err)
				}
				return
			}
			updated++
		}(id, group)
	}

	wg.Wait()
	return updated, firstErr
}
