package services

import (
	"math"

	"gradestats/models"
)

// AverageGrade computes the letter-grade average across the given semester
// rows, weighting A..E from 5 down to 1 (F counts as 0 but still adds a
// student). Subjects that only report pass/fail have no letter counts and
// yield "N/A".
func AverageGrade(grades []models.SubjectSemesterGrade) string {
	if len(grades) == 0 {
		return "N/A"
	}

	totalPoints := 0
	totalStudents := 0
	for _, g := range grades {
		totalPoints += g.GradeA*5 + g.GradeB*4 + g.GradeC*3 + g.GradeD*2 + g.GradeE*1
		totalStudents += g.GradeA + g.GradeB + g.GradeC + g.GradeD + g.GradeE + g.GradeF
	}
	if totalStudents == 0 {
		return "N/A"
	}

	average := float64(totalPoints) / float64(totalStudents)
	switch {
	case average >= 4.5:
		return "A"
	case average >= 3.5:
		return "B"
	case average >= 2.5:
		return "C"
	case average >= 1.5:
		return "D"
	case average >= 0.5:
		return "E"
	default:
		return "F"
	}
}

// FailRate returns the share of F grades among letter-graded students,
// rounded to two decimals.
func FailRate(grades []models.SubjectSemesterGrade) float64 {
	if len(grades) == 0 {
		return 0
	}

	totalFails := 0
	totalStudents := 0
	for _, g := range grades {
		totalFails += g.GradeF
		totalStudents += g.GradeA + g.GradeB + g.GradeC + g.GradeD + g.GradeE + g.GradeF
	}
	if totalStudents == 0 {
		return 0
	}

	return math.Round(float64(totalFails)/float64(totalStudents)*100) / 100
}
