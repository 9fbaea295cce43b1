package models

import "time"

// Subject is a university course, keyed by its course code ("Emnekode",
// e.g. "TDT4100"). The base fields come from the HKdir subject table; the
// nullable fields at the bottom are filled in by the NTNU catalog enricher
// and overwritten on every enrichment run.
type Subject struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name        string  `json:"name" gorm:"not null"`
	Level       string  `json:"level"`
	Language    string  `json:"language"`
	StudyPoints float64 `json:"study_points"`
	InstituteID string  `json:"institute_id" gorm:"index;not null"`

	Department *Department `json:"department,omitempty" gorm:"foreignKey:InstituteID"`

	CourseContent  *string `json:"course_content,omitempty" gorm:"type:text"`
	LearningGoals  *string `json:"learning_goals,omitempty" gorm:"type:text"`
	StudyLevel     *int    `json:"study_level,omitempty"`
	TaughtInAutumn *bool   `json:"taught_in_autumn,omitempty"`
	TaughtInSpring *bool   `json:"taught_in_spring,omitempty"`
	PlaceOfStudy   *string `json:"place_of_study,omitempty"`

	Grades []SubjectSemesterGrade `json:"grades,omitempty" gorm:"foreignKey:SubjectID"`
}

// TableName sets the explicit table name for GORM.
func (Subject) TableName() string {
	return "subjects"
}
