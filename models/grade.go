package models

import "time"

// SubjectSemesterGrade holds the aggregated grade distribution for one
// subject in one semester. The synthetic ID exists because the bulk-create
// path cannot return generated keys; the business key is the unique
// (SubjectID, Year, Semester) triple.
//
// A subject reports either the letter scheme (A-F) or the pass/fail scheme
// (G/H in the source data); the unused counters stay zero.
type SubjectSemesterGrade struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SubjectID string `json:"subject_id" gorm:"uniqueIndex:idx_subject_semester;not null"`
	Year      int    `json:"year" gorm:"uniqueIndex:idx_subject_semester"`
	Semester  int    `json:"semester" gorm:"uniqueIndex:idx_subject_semester"`

	GradeA    int `json:"grade_a"`
	GradeB    int `json:"grade_b"`
	GradeC    int `json:"grade_c"`
	GradeD    int `json:"grade_d"`
	GradeE    int `json:"grade_e"`
	GradeF    int `json:"grade_f"`
	GradePass int `json:"grade_pass"`
	GradeFail int `json:"grade_fail"`

	ParticipantsTotal int `json:"participants_total"`
}

// TableName sets the explicit table name for GORM.
func (SubjectSemesterGrade) TableName() string {
	return "subject_semester_grades"
}
