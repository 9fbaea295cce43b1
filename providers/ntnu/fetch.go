package ntnu

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"gradestats/config"
)

// keyValuePattern extracts "name: value" pairs from the loosely structured
// card body text, one pair per content line.
var keyValuePattern = regexp.MustCompile(`(\S.*):\s+(.*)`)

// Fetcher retrieves and parses NTNU course-catalog pages.
type Fetcher struct {
	Config *config.Config
	Logger *zap.Logger
	client *resty.Client
}

// NewFetcher creates a new catalog fetcher.
func NewFetcher(cfg *config.Config, logger *zap.Logger) *Fetcher {
	client := resty.New()
	client.SetTimeout(30 * time.Second)
	client.SetHeader("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36")
	return &Fetcher{Config: cfg, Logger: logger, client: client}
}

// CatalogURL derives the catalog page URL for a subject code. Versioned
// codes like "TDT4100-1" share the page of their base code.
func (f *Fetcher) CatalogURL(subjectCode string) string {
	base, _, _ := strings.Cut(subjectCode, "-")
	return fmt.Sprintf("%s/%s", f.Config.NTNUBaseURL, base)
}

// FetchMetadata fetches and parses the catalog page for one subject code.
// A non-success status fails this subject only; the caller decides how to
// surface it.
func (f *Fetcher) FetchMetadata(ctx context.Context, subjectCode string) (*SubjectMetadata, error) {
	url := f.CatalogURL(subjectCode)

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("could not fetch %s: %w", url, err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() > 299 {
		return nil, fmt.Errorf("could not fetch %s, got status code %d", url, resp.StatusCode())
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("could not parse %s: %w", url, err)
	}

	return parseSubjectPage(doc), nil
}

// parseSubjectPage extracts the enrichment fields from a course page. A
// page stating there is no info for the academic year yields the all-null
// placeholder, which is a normal outcome and not an error.
func parseSubjectPage(doc *goquery.Document) *SubjectMetadata {
	if strings.TrimSpace(doc.Find("div#course-details h1").First().Text()) == headingNoInfo {
		return &SubjectMetadata{}
	}

	meta := &SubjectMetadata{}

	facts := parseCardContentByTitle(doc, cardTitleFacts)
	if description, ok := facts[fieldStudyLevel]; ok {
		code := StudyLevelFromDescription(description)
		meta.StudyLevel = &code
	}

	teaching := parseCardContentByTitle(doc, cardTitleTeaching)
	if taughtIn, ok := teaching[fieldTaughtIn]; ok {
		lowered := strings.ToLower(taughtIn)
		autumn := strings.Contains(lowered, substringAutumn)
		spring := strings.Contains(lowered, substringSpring)
		meta.TaughtInAutumn = &autumn
		meta.TaughtInSpring = &spring
	}
	if place, ok := teaching[fieldPlace]; ok {
		meta.PlaceOfStudy = &place
	}

	content := doc.Find("div#course-content-toggler p").Text()
	meta.CourseContent = &content

	goals := doc.Find("div#learning-goal-toggler p").Text()
	meta.LearningGoals = &goals

	return meta
}

// parseCardContentByTitle locates the card whose header text matches the
// title exactly and returns the key/value pairs found in its body text.
func parseCardContentByTitle(doc *goquery.Document, title string) map[string]string {
	card := doc.Find("div.card-header").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Text() == title
	}).First().Parent()

	bodyText := card.Find("div.card-body").Text()

	content := make(map[string]string)
	for _, match := range keyValuePattern.FindAllStringSubmatch(bodyText, -1) {
		content[strings.TrimSpace(match[1])] = strings.TrimSpace(match[2])
	}
	return content
}
