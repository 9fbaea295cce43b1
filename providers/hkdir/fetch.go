package hkdir

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"gradestats/config"
)

// Fetcher wraps the HKdir table-data endpoint. Every dataset is one POST
// with a declarative query body; the response is streamed to a file so the
// populate step can re-run without touching the network.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *resty.Client
}

// NewFetcher creates a new HKdir fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	client := resty.New()
	client.SetTimeout(120 * time.Second)
	client.SetHeader("Content-Type", "application/json")
	return &Fetcher{Config: cfg, Logger: logger, client: client}
}

// DepartmentsQuery selects the faculty and institute rows (levels 2 and 3)
// for the given institution codes. Level 1 is the institution itself and is
// covered by the static university list.
func DepartmentsQuery(institutions []string) Query {
	return Query{
		TableID:    TableDepartments,
		APIVersion: 1,
		Variables:  []string{"*"},
		SortBy:     []string{"Nivå"},
		Filter: []Filter{
			ItemFilter("Institusjonskode", institutions...),
			AllFilter("Nivå", "1"),
		},
	}
}

// SubjectsQuery selects all course rows for the given institution codes.
func SubjectsQuery(institutions []string) Query {
	return Query{
		TableID:    TableSubjects,
		APIVersion: 1,
		Variables:  []string{"*"},
		SortBy:     []string{"Emnekode"},
		Filter: []Filter{
			ItemFilter("Institusjonskode", institutions...),
		},
	}
}

// GradesQuery selects per-symbol grade counts for the given institution
// codes over the most recent years.
func GradesQuery(institutions []string, years int) Query {
	return Query{
		TableID:    TableGrades,
		APIVersion: 1,
		Variables:  []string{"*"},
		GroupBy:    []string{"Emnekode", "Årstall", "Semester", "Karakter"},
		Filter: []Filter{
			ItemFilter("Institusjonskode", institutions...),
			TopFilter("Årstall", strconv.Itoa(years)),
		},
	}
}

// FetchToFile issues one table-data request and streams the response body
// to the named file. An empty body means the query matched nothing and is
// treated as an error, there is nothing downstream to process.
func (f *Fetcher) FetchToFile(ctx context.Context, query Query, path string) error {
	log := f.Logger.With(zap.String("table_id", query.TableID), zap.String("path", path))
	log.Info("Fetching HKdir table data")

	resp, err := f.client.R().
		SetContext(ctx).
		SetBody(query).
		SetDoNotParseResponse(true).
		Post(f.Config.HKdirBaseURL)
	if err != nil {
		return fmt.Errorf("hkdir request for table %s failed: %w", query.TableID, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return fmt.Errorf("hkdir returned status %d for table %s", resp.StatusCode(), query.TableID)
	}

	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("could not create output file %s: %w", path, err)
	}
	defer out.Close()

	written, err := io.Copy(out, body)
	if err != nil {
		return fmt.Errorf("streaming response for table %s failed: %w", query.TableID, err)
	}
	if written == 0 {
		return fmt.Errorf("hkdir returned an empty body for table %s", query.TableID)
	}

	log.Info("Table data written", zap.Int64("bytes", written))
	return nil
}
