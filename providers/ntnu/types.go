package ntnu

// SubjectMetadata is what one catalog page yields. All fields are nullable:
// a page that reports no info for the academic year produces the zero value,
// which is still written to the store (full overwrite, not merge).
type SubjectMetadata struct {
	CourseContent  *string
	LearningGoals  *string
	StudyLevel     *int
	TaughtInAutumn *bool
	TaughtInSpring *bool
	PlaceOfStudy   *string
}

// Every literal the parser matches against lives here. The catalog is
// scraped free text, so when NTNU rewords a heading only this block needs
// to change.
const (
	headingNoInfo = "Ingen info for gitt studieår"

	cardTitleFacts    = "Fakta om emnet"
	cardTitleTeaching = "Undervisning"

	fieldStudyLevel = "Studienivå"
	fieldTaughtIn   = "Undervises"
	fieldPlace      = "Sted"

	substringAutumn = "høst"
	substringSpring = "vår"
)

// studyLevels maps the free-text study-level descriptions on the facts card
// to the numeric codes used by the frontend filters.
var studyLevels = map[string]int{
	"Doktorgrads nivå":                     900,
	"Videreutdanning lavere grad":          800,
	"Høyere grads nivå":                    500,
	"Fjerdeårsemner, nivå IV":              400,
	"Tredjeårsemner, nivå III":             300,
	"Videregående emner, nivå II":          200,
	"Grunnleggende emner, nivå I":          100,
	"Lavere grad, redskapskurs":            90,
	"Norsk for internasjonale studenter":   80,
	"Examen facultatum":                    71,
	"Examen philosophicum":                 70,
	"Forprøve/forkurs":                     60,
}

// StudyLevelFromDescription resolves a study-level phrase to its numeric
// code. Unrecognized phrases map to -1 rather than failing the page.
func StudyLevelFromDescription(description string) int {
	if code, ok := studyLevels[description]; ok {
		return code
	}
	return -1
}
