package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"gradestats/config"
	"gradestats/models"
	"gradestats/providers/hkdir"
)

// universityList is the static set of universities the crawler covers.
// HKdir assigns the codes; they never change.
var universityList = []models.University{
	{ID: "1110", Name: "Universitetet i Oslo", ShortName: "UiO"},
	{ID: "1120", Name: "Universitetet i Bergen", ShortName: "UiB"},
	{ID: "1130", Name: "Universitetet i Tromsø - Norges arktiske universitet", ShortName: "UiT"},
	{ID: "1150", Name: "Norges teknisk-naturvitenskapelige universitet", ShortName: "NTNU"},
	{ID: "1160", Name: "Universitetet i Stavanger", ShortName: "UiS"},
	{ID: "1171", Name: "Universitetet i Agder", ShortName: "UiA"},
	{ID: "1240", Name: "Norges handelshøyskole", ShortName: "NHH"},
}

// UniversityCodes returns the institution codes used in the HKdir queries.
func UniversityCodes() []string {
	codes := make([]string, 0, len(universityList))
	for _, u := range universityList {
		codes = append(codes, u.ID)
	}
	return codes
}

// InstitutionService reconciles the university/department reference data.
type InstitutionService struct {
	DB     *gorm.DB
	Logger *zap.Logger
}

// NewInstitutionService creates a new instance of the InstitutionService.
func NewInstitutionService(db *gorm.DB, logger *zap.Logger) *InstitutionService {
	return &InstitutionService{DB: db, Logger: logger}
}

// RegisterUniversities upserts the static university list. Existing rows
// are only written when name or short name changed.
func (s *InstitutionService) RegisterUniversities(ctx context.Context) error {
	db := s.DB.WithContext(ctx)

	for _, university := range universityList {
		var existing models.University
		err := db.Where("id = ?", university.ID).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := db.Create(&university).Error; err != nil {
				return fmt.Errorf("could not create university %s: %w", university.ID, err)
			}
			s.Logger.Info("Created university", zap.String("id", university.ID), zap.String("name", university.Name))
		case err != nil:
			return fmt.Errorf("could not look up university %s: %w", university.ID, err)
		case existing.Name != university.Name || existing.ShortName != university.ShortName:
			updates := map[string]interface{}{"name": university.Name, "short_name": university.ShortName}
			if err := db.Model(&models.University{}).Where("id = ?", university.ID).Updates(updates).Error; err != nil {
				return fmt.Errorf("could not update university %s: %w", university.ID, err)
			}
			s.Logger.Info("Updated university", zap.String("id", university.ID))
		}
	}
	return nil
}

// RegisterDepartmentsFromFile loads the raw department snapshot and
// reconciles it into the store.
func (s *InstitutionService) RegisterDepartmentsFromFile(ctx context.Context, path string) error {
	rows, err := loadRows[hkdir.DepartmentRow](path)
	if err != nil {
		return err
	}
	return s.RegisterDepartments(ctx, rows)
}

// RegisterDepartments reconciles raw hierarchy rows against the store.
// Rows are sorted by level ascending so that parent-level rows are fully
// processed before anything that depends on them; a row whose university
// cannot be resolved is a fatal error, the source data is malformed.
func (s *InstitutionService) RegisterDepartments(ctx context.Context, rows []hkdir.DepartmentRow) error {
	s.Logger.Info("Reconciling departments", zap.Int("rows", len(rows)))

	sorted := make([]hkdir.DepartmentRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Level < sorted[j].Level
	})

	for _, row := range sorted {
		switch row.Level {
		case "2", "3":
			if err := s.registerDepartment(ctx, row); err != nil {
				return err
			}
		default:
			return fmt.Errorf("cannot register department %s with level %q", row.DepartmentCode, row.Level)
		}
	}
	return nil
}

func (s *InstitutionService) registerDepartment(ctx context.Context, row hkdir.DepartmentRow) error {
	db := s.DB.WithContext(ctx)

	var university models.University
	if err := db.Where("id = ?", row.InstitutionCode).First(&university).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("did not find matching university %s for department %s (%s)",
				row.InstitutionCode, row.DepartmentCode, row.DepartmentName)
		}
		return fmt.Errorf("could not look up university %s: %w", row.InstitutionCode, err)
	}

	var existing models.Department
	err := db.Where("id = ?", row.DepartmentCode).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		department := models.Department{
			ID:           row.DepartmentCode,
			Name:         row.DepartmentName,
			UniversityID: university.ID,
		}
		if err := db.Create(&department).Error; err != nil {
			return fmt.Errorf("could not create department %s: %w", row.DepartmentCode, err)
		}
		s.Logger.Debug("Created department", zap.String("id", row.DepartmentCode), zap.String("name", row.DepartmentName))
	case err != nil:
		return fmt.Errorf("could not look up department %s: %w", row.DepartmentCode, err)
	case existing.Name != row.DepartmentName || existing.UniversityID != university.ID:
		updates := map[string]interface{}{"name": row.DepartmentName, "university_id": university.ID}
		if err := db.Model(&models.Department{}).Where("id = ?", row.DepartmentCode).Updates(updates).Error; err != nil {
			return fmt.Errorf("could not update department %s: %w", row.DepartmentCode, err)
		}
		s.Logger.Debug("Updated department", zap.String("id", row.DepartmentCode))
	}
	return nil
}

// BackfillFromFile re-derives the department to university mapping from the
// raw snapshot and patches stored departments whose link is missing or
// stale. Departments absent from the snapshot are logged and left alone.
func (s *InstitutionService) BackfillFromFile(ctx context.Context, cfg *config.Config) (int, error) {
	rows, err := loadRows[hkdir.DepartmentRow](SnapshotPath(cfg, FileDepartments))
	if err != nil {
		return 0, err
	}
	return s.BackfillUniversityLinks(ctx, rows)
}

// BackfillUniversityLinks patches the university reference of every stored
// department that the raw rows map to a different institution code.
func (s *InstitutionService) BackfillUniversityLinks(ctx context.Context, rows []hkdir.DepartmentRow) (int, error) {
	db := s.DB.WithContext(ctx)

	universityByDepartment := make(map[string]string, len(rows))
	for _, row := range rows {
		if row.DepartmentCode != "" && row.InstitutionCode != "" {
			universityByDepartment[row.DepartmentCode] = row.InstitutionCode
		}
	}

	var departments []models.Department
	if err := db.Find(&departments).Error; err != nil {
		return 0, fmt.Errorf("could not list departments: %w", err)
	}

	updated := 0
	for _, department := range departments {
		universityID, ok := universityByDepartment[department.ID]
		if !ok {
			s.Logger.Warn("No university mapping for department", zap.String("id", department.ID))
			continue
		}
		if department.UniversityID == universityID {
			continue
		}
		err := db.Model(&models.Department{}).Where("id = ?", department.ID).
			Update("university_id", universityID).Error
		if err != nil {
			return updated, fmt.Errorf("could not backfill department %s: %w", department.ID, err)
		}
		updated++
	}

	s.Logger.Info("University backfill completed", zap.Int("updated", updated))
	return updated, nil
}
