package models

import "time"

// University is the root of the institution hierarchy. The ID is the
// official institution code assigned by HKdir (e.g. "1150" for NTNU),
// never generated locally.
type University struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name      string `json:"name" gorm:"not null"`
	ShortName string `json:"short_name"`

	Departments []Department `json:"departments,omitempty" gorm:"foreignKey:UniversityID"`
}

// TableName sets the explicit table name for GORM.
func (University) TableName() string {
	return "universities"
}
