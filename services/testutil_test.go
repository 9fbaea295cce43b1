package services

import (
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gradestats/models"
)

// newTestDB opens an isolated in-memory store with the full schema. The
// pool is capped at one connection so every goroutine in a test sees the
// same in-memory database.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.University{},
		&models.Department{},
		&models.Subject{},
		&models.SubjectSemesterGrade{},
	))
	return db
}

func seedUniversity(t *testing.T, db *gorm.DB, id, name string) {
	t.Helper()
	require.NoError(t, db.Create(&models.University{ID: id, Name: name}).Error)
}

func seedDepartment(t *testing.T, db *gorm.DB, id, name, universityID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Department{ID: id, Name: name, UniversityID: universityID}).Error)
}

func seedSubject(t *testing.T, db *gorm.DB, id, name, departmentID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Subject{ID: id, Name: name, InstituteID: departmentID}).Error)
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}
