package models

import "time"

// Department is a faculty or institute owned by a University. The ID is
// the HKdir department code ("Avdelingskode").
type Department struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name         string `json:"name" gorm:"not null"`
	UniversityID string `json:"university_id" gorm:"index;not null"`

	University *University `json:"university,omitempty" gorm:"foreignKey:UniversityID"`
}

// TableName sets the explicit table name for GORM.
func (Department) TableName() string {
	return "departments"
}
