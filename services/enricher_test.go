package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gradestats/config"
	"gradestats/models"
	"gradestats/providers/ntnu"
)

const testCoursePage = `<html><body>
<div id="course-details"><h1>Algoritmer</h1></div>
<div class="card">
  <div class="card-header">Fakta om emnet</div>
  <div class="card-body">
Studienivå: Høyere grads nivå
  </div>
</div>
<div class="card">
  <div class="card-header">Undervisning</div>
  <div class="card-body">
Undervises: Høst 2024 og Vår 2025
Sted: Trondheim
  </div>
</div>
<div id="course-content-toggler"><p>Grafalgoritmer og kompleksitet.</p></div>
<div id="learning-goal-toggler"><p>Studenten kan analysere algoritmer.</p></div>
</body></html>`

const testNoInfoPage = `<html><body>
<div id="course-details"><h1>Ingen info for gitt studieår</h1></div>
</body></html>`

func TestCrawlAllEnrichesSubjects(t *testing.T) {
	db := newTestDB(t)
	seedUniversity(t, db, "1150", "NTNU")
	seedDepartment(t, db, "273000", "IDI", "1150")
	seedSubject(t, db, "TDT4120", "Algoritmer", "273000")
	seedSubject(t, db, "TDT4999", "Utgått emne", "273000")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/TDT4120":
			w.Write([]byte(testCoursePage))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	cfg := &config.Config{NTNUBaseURL: server.URL}
	svc := NewEnricherService(db, testLogger(), ntnu.NewFetcher(cfg, testLogger()), 4)

	report, err := svc.CrawlAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, "TDT4999", report.Failures[0].SubjectID)

	var subject models.Subject
	require.NoError(t, db.First(&subject, "id = ?", "TDT4120").Error)
	require.NotNil(t, subject.StudyLevel)
	assert.Equal(t, 500, *subject.StudyLevel)
	require.NotNil(t, subject.TaughtInAutumn)
	assert.True(t, *subject.TaughtInAutumn)
	require.NotNil(t, subject.TaughtInSpring)
	assert.True(t, *subject.TaughtInSpring)
	require.NotNil(t, subject.PlaceOfStudy)
	assert.Equal(t, "Trondheim", *subject.PlaceOfStudy)
	require.NotNil(t, subject.CourseContent)
	assert.Contains(t, *subject.CourseContent, "Grafalgoritmer")
}

func TestCrawlAllNullsOutStaleMetadata(t *testing.T) {
	db := newTestDB(t)
	seedUniversity(t, db, "1150", "NTNU")
	seedDepartment(t, db, "273000", "IDI", "1150")

	level := 500
	place := "Trondheim"
	require.NoError(t, db.Create(&models.Subject{
		ID:           "TDT4120",
		Name:         "Algoritmer",
		InstituteID:  "273000",
		StudyLevel:   &level,
		PlaceOfStudy: &place,
	}).Error)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(testNoInfoPage))
	}))
	t.Cleanup(server.Close)

	cfg := &config.Config{NTNUBaseURL: server.URL}
	svc := NewEnricherService(db, testLogger(), ntnu.NewFetcher(cfg, testLogger()), 1)

	report, err := svc.CrawlAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	var subject models.Subject
	require.NoError(t, db.First(&subject, "id = ?", "TDT4120").Error)
	assert.Nil(t, subject.StudyLevel)
	assert.Nil(t, subject.PlaceOfStudy)
}
