package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradestats/models"
	"gradestats/providers/hkdir"
)

func TestRegisterUniversitiesIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstitutionService(db, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.RegisterUniversities(ctx))
	require.NoError(t, svc.RegisterUniversities(ctx))

	var count int64
	require.NoError(t, db.Model(&models.University{}).Count(&count).Error)
	assert.Equal(t, int64(len(universityList)), count)
}

func TestRegisterUniversitiesRestoresChangedNames(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstitutionService(db, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.RegisterUniversities(ctx))
	require.NoError(t, db.Model(&models.University{}).Where("id = ?", "1150").
		Update("name", "renamed").Error)

	require.NoError(t, svc.RegisterUniversities(ctx))

	var ntnu models.University
	require.NoError(t, db.First(&ntnu, "id = ?", "1150").Error)
	assert.Equal(t, "Norges teknisk-naturvitenskapelige universitet", ntnu.Name)
	assert.Equal(t, "NTNU", ntnu.ShortName)
}

func TestRegisterDepartmentsCreatesFacultiesAndInstitutes(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstitutionService(db, testLogger())
	ctx := context.Background()
	seedUniversity(t, db, "1150", "NTNU")

	// Institute before its faculty in the raw order; the level sort must
	// not care.
	rows := []hkdir.DepartmentRow{
		{Level: "3", InstitutionCode: "1150", DepartmentCode: "273000", DepartmentName: "Institutt for datateknologi"},
		{Level: "2", InstitutionCode: "1150", DepartmentCode: "270000", DepartmentName: "Fakultet for informasjonsteknologi"},
	}
	require.NoError(t, svc.RegisterDepartments(ctx, rows))

	var count int64
	require.NoError(t, db.Model(&models.Department{}).Count(&count).Error)
	assert.Equal(t, int64(2), count)

	var institute models.Department
	require.NoError(t, db.First(&institute, "id = ?", "273000").Error)
	assert.Equal(t, "1150", institute.UniversityID)
}

func TestRegisterDepartmentsIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstitutionService(db, testLogger())
	ctx := context.Background()
	seedUniversity(t, db, "1150", "NTNU")

	rows := []hkdir.DepartmentRow{
		{Level: "2", InstitutionCode: "1150", DepartmentCode: "270000", DepartmentName: "Fakultet for informasjonsteknologi"},
	}
	require.NoError(t, svc.RegisterDepartments(ctx, rows))
	require.NoError(t, svc.RegisterDepartments(ctx, rows))

	var count int64
	require.NoError(t, db.Model(&models.Department{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRegisterDepartmentsUpdatesChangedRows(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstitutionService(db, testLogger())
	ctx := context.Background()
	seedUniversity(t, db, "1150", "NTNU")
	seedDepartment(t, db, "270000", "old name", "1150")

	rows := []hkdir.DepartmentRow{
		{Level: "2", InstitutionCode: "1150", DepartmentCode: "270000", DepartmentName: "new name"},
	}
	require.NoError(t, svc.RegisterDepartments(ctx, rows))

	var department models.Department
	require.NoError(t, db.First(&department, "id = ?", "270000").Error)
	assert.Equal(t, "new name", department.Name)
}

func TestRegisterDepartmentsFailsOnUnknownUniversity(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstitutionService(db, testLogger())

	rows := []hkdir.DepartmentRow{
		{Level: "2", InstitutionCode: "9999", DepartmentCode: "270000", DepartmentName: "Fakultet"},
	}
	err := svc.RegisterDepartments(context.Background(), rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not find matching university")
}

func TestRegisterDepartmentsFailsOnUnexpectedLevel(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstitutionService(db, testLogger())
	seedUniversity(t, db, "1150", "NTNU")

	rows := []hkdir.DepartmentRow{
		{Level: "5", InstitutionCode: "1150", DepartmentCode: "270000", DepartmentName: "Fakultet"},
	}
	err := svc.RegisterDepartments(context.Background(), rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "level")
}

func TestBackfillUniversityLinks(t *testing.T) {
	db := newTestDB(t)
	svc := NewInstitutionService(db, testLogger())
	ctx := context.Background()
	seedUniversity(t, db, "1150", "NTNU")
	seedUniversity(t, db, "1110", "UiO")
	seedDepartment(t, db, "270000", "Fakultet", "1110") // stale link
	seedDepartment(t, db, "150000", "Matnat", "1110")   // correct, untouched
	seedDepartment(t, db, "999000", "Ukjent", "1110")   // absent from snapshot

	rows := []hkdir.DepartmentRow{
		{Level: "2", InstitutionCode: "1150", DepartmentCode: "270000"},
		{Level: "2", InstitutionCode: "1110", DepartmentCode: "150000"},
	}
	updated, err := svc.BackfillUniversityLinks(ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	var department models.Department
	require.NoError(t, db.First(&department, "id = ?", "270000").Error)
	assert.Equal(t, "1150", department.UniversityID)

	department = models.Department{}
	require.NoError(t, db.First(&department, "id = ?", "999000").Error)
	assert.Equal(t, "1110", department.UniversityID)
}
