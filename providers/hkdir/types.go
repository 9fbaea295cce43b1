package hkdir

// Table identifiers in the HKdir (dbh) statistics database.
const (
	TableDepartments = "210"
	TableSubjects    = "208"
	TableGrades      = "308"
)

// Selection describes which values of a variable a query wants. The API
// knows three filter kinds: "item" (explicit allow-list), "all" (wildcard,
// optionally with exclusions) and "top" (the N highest-ranked values, used
// for year variables).
type Selection struct {
	Filter  string   `json:"filter"`
	Values  []string `json:"values"`
	Exclude []string `json:"exclude,omitempty"`
}

// Filter binds a selection to a table variable. Filters in a query combine
// with AND semantics.
type Filter struct {
	Variable  string    `json:"variable"`
	Selection Selection `json:"selection"`
}

// Query is the JSON body of a table-data request.
type Query struct {
	TableID    string   `json:"tableId"`
	APIVersion int      `json:"apiVersion"`
	Variables  []string `json:"variables"`
	SortBy     []string `json:"sortBy,omitempty"`
	GroupBy    []string `json:"groupBy,omitempty"`
	Filter     []Filter `json:"filter"`
}

// ItemFilter selects an explicit list of allowed values.
func ItemFilter(variable string, values ...string) Filter {
	return Filter{
		Variable:  variable,
		Selection: Selection{Filter: "item", Values: values},
	}
}

// AllFilter selects every value except the given exclusions.
func AllFilter(variable string, exclude ...string) Filter {
	return Filter{
		Variable:  variable,
		Selection: Selection{Filter: "all", Values: []string{"*"}, Exclude: exclude},
	}
}

// TopFilter selects the n most recent values of a ranked variable.
func TopFilter(variable string, n string) Filter {
	return Filter{
		Variable:  variable,
		Selection: Selection{Filter: "top", Values: []string{n}},
	}
}

// DepartmentRow is a raw institution-hierarchy row. Level ("Nivå") 2 rows
// are faculties, level 3 rows are institutes; both hang off the university
// identified by the institution code.
type DepartmentRow struct {
	Level           string `json:"Nivå"`
	LevelText       string `json:"Nivå_tekst"`
	InstitutionCode string `json:"Institusjonskode"`
	InstitutionName string `json:"Institusjonsnavn"`
	DepartmentCode  string `json:"Avdelingskode"`
	DepartmentName  string `json:"Avdelingsnavn"`
	FacultyCode     string `json:"Fakultetskode"`
	FacultyName     string `json:"Fakultetsnavn"`
}

// SubjectRow is a raw course row.
type SubjectRow struct {
	SubjectCode     string `json:"Emnekode"`
	SubjectName     string `json:"Emnenavn"`
	LevelCode       string `json:"Nivåkode"`
	Language        string `json:"Underv.språk"`
	StudyPoints     string `json:"Studiepoeng"`
	InstitutionCode string `json:"Institusjonskode"`
	DepartmentCode  string `json:"Avdelingskode"`
}

// GradeRow is a raw grade-statistics row: one row per subject, semester
// and grade symbol.
type GradeRow struct {
	SubjectCode string `json:"Emnekode"`
	Year        string `json:"Årstall"`
	Semester    string `json:"Semester"`
	Symbol      string `json:"Karakter"`
	Candidates  string `json:"Antall kandidater totalt"`
}
