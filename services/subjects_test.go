package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradestats/models"
	"gradestats/providers/hkdir"
)

func TestRegisterSubjectsDeduplicatesAndInserts(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubjectService(db, testLogger())
	seedUniversity(t, db, "1150", "NTNU")
	seedDepartment(t, db, "273000", "IDI", "1150")

	rows := []hkdir.SubjectRow{
		{SubjectCode: "TDT4100", SubjectName: "Objektorientert programmering", LevelCode: "LN", Language: "Norsk", StudyPoints: "7,5", DepartmentCode: "273000"},
		{SubjectCode: "TDT4100", SubjectName: "duplicate row, first wins", StudyPoints: "10", DepartmentCode: "273000"},
		{SubjectCode: "TDT4120", SubjectName: "Algoritmer og datastrukturer", LevelCode: "LN", Language: "Norsk", StudyPoints: "7.5", DepartmentCode: "273000"},
	}
	report, err := svc.Register(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Inserted)
	assert.Equal(t, 0, report.SkippedExisting)
	assert.Empty(t, report.RowErrors)

	var subject models.Subject
	require.NoError(t, db.First(&subject, "id = ?", "TDT4100").Error)
	assert.Equal(t, "Objektorientert programmering", subject.Name)
	assert.Equal(t, 7.5, subject.StudyPoints)
}

func TestRegisterSubjectsNeverTouchesExisting(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubjectService(db, testLogger())
	seedUniversity(t, db, "1150", "NTNU")
	seedDepartment(t, db, "273000", "IDI", "1150")

	rows := []hkdir.SubjectRow{
		{SubjectCode: "TDT4100", SubjectName: "original", StudyPoints: "7,5", DepartmentCode: "273000"},
	}
	_, err := svc.Register(context.Background(), rows)
	require.NoError(t, err)

	rows[0].SubjectName = "changed upstream"
	report, err := svc.Register(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Inserted)
	assert.Equal(t, 1, report.SkippedExisting)

	var subject models.Subject
	require.NoError(t, db.First(&subject, "id = ?", "TDT4100").Error)
	assert.Equal(t, "original", subject.Name)
}

func TestRegisterSubjectsCollectsMalformedStudyPoints(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubjectService(db, testLogger())
	seedUniversity(t, db, "1150", "NTNU")
	seedDepartment(t, db, "273000", "IDI", "1150")

	rows := []hkdir.SubjectRow{
		{SubjectCode: "TDT4100", SubjectName: "ok", StudyPoints: "7,5", DepartmentCode: "273000"},
		{SubjectCode: "TDT4120", SubjectName: "broken", StudyPoints: "sju komma fem", DepartmentCode: "273000"},
	}
	report, err := svc.Register(context.Background(), rows)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Inserted)
	require.Len(t, report.RowErrors, 1)
	assert.Contains(t, report.RowErrors[0].Error(), "TDT4120")

	var count int64
	require.NoError(t, db.Model(&models.Subject{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRegisterSubjectsFailsOnUnknownDepartment(t *testing.T) {
	db := newTestDB(t)
	svc := NewSubjectService(db, testLogger())

	rows := []hkdir.SubjectRow{
		{SubjectCode: "TDT4100", SubjectName: "orphan", StudyPoints: "7,5", DepartmentCode: "273000"},
	}
	_, err := svc.Register(context.Background(), rows)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not find matching department")
}

func TestParseStudyPoints(t *testing.T) {
	points, err := parseStudyPoints("7,5")
	require.NoError(t, err)
	assert.Equal(t, 7.5, points)

	points, err = parseStudyPoints(" 10 ")
	require.NoError(t, err)
	assert.Equal(t, 10.0, points)

	_, err = parseStudyPoints("n/a")
	assert.Error(t, err)
}
