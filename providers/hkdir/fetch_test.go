package hkdir

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"gradestats/config"
)

func newTestFetcher(t *testing.T, handler http.HandlerFunc) *Fetcher {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	cfg := &config.Config{HKdirBaseURL: server.URL}
	return NewFetcher(cfg, zap.NewNop())
}

func TestFetchToFileWritesResponseBody(t *testing.T) {
	payload := `[{"Emnekode":"TDT4100","Årstall":"2024"}]`

	var received Query
	fetcher := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Write([]byte(payload))
	})

	path := filepath.Join(t.TempDir(), "grades.json")
	query := GradesQuery([]string{"1150"}, 10)
	require.NoError(t, fetcher.FetchToFile(context.Background(), query, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, payload, string(data))

	assert.Equal(t, TableGrades, received.TableID)
	assert.Equal(t, []string{"Emnekode", "Årstall", "Semester", "Karakter"}, received.GroupBy)
}

func TestFetchToFileFailsOnEmptyBody(t *testing.T) {
	fetcher := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	path := filepath.Join(t.TempDir(), "empty.json")
	err := fetcher.FetchToFile(context.Background(), SubjectsQuery([]string{"1150"}), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty body")
}

func TestFetchToFileFailsOnErrorStatus(t *testing.T) {
	fetcher := newTestFetcher(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	path := filepath.Join(t.TempDir(), "error.json")
	err := fetcher.FetchToFile(context.Background(), SubjectsQuery([]string{"1150"}), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestDepartmentsQueryShape(t *testing.T) {
	query := DepartmentsQuery([]string{"1150", "1110"})
	assert.Equal(t, TableDepartments, query.TableID)
	assert.Equal(t, []string{"Nivå"}, query.SortBy)
	require.Len(t, query.Filter, 2)

	institutions := query.Filter[0]
	assert.Equal(t, "Institusjonskode", institutions.Variable)
	assert.Equal(t, "item", institutions.Selection.Filter)
	assert.Equal(t, []string{"1150", "1110"}, institutions.Selection.Values)

	// Level 1 rows are the institutions themselves; the query excludes them.
	level := query.Filter[1]
	assert.Equal(t, "Nivå", level.Variable)
	assert.Equal(t, "all", level.Selection.Filter)
	assert.Equal(t, []string{"1"}, level.Selection.Exclude)
}

func TestGradesQueryShape(t *testing.T) {
	query := GradesQuery([]string{"1150"}, 5)
	require.Len(t, query.Filter, 2)

	years := query.Filter[1]
	assert.Equal(t, "Årstall", years.Variable)
	assert.Equal(t, "top", years.Selection.Filter)
	assert.Equal(t, []string{"5"}, years.Selection.Values)
}

func TestQuerySerializesWithAPIFieldNames(t *testing.T) {
	data, err := json.Marshal(SubjectsQuery([]string{"1150"}))
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Contains(t, decoded, "tableId")
	assert.Contains(t, decoded, "apiVersion")
	assert.Contains(t, decoded, "filter")
	assert.NotContains(t, decoded, "groupBy")
}
