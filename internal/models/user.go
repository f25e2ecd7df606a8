package models

import "strings"

// User is a registered account. Organizations are users flagged IsOrganization.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`

	FirstName  string     `json:"first_name"`
	LastName   string     `json:"last_name"`
	Phone      string     `json:"phone"`
	Address    string     `json:"address"`
	City       string     `gorm:"index" json:"city"`
	BloodGroup BloodGroup `gorm:"type:varchar(3);index" json:"blood_group"`

	IsAdmin          bool    `gorm:"default:false" json:"is_admin"`
	IsOrganization   bool    `gorm:"default:false;index" json:"is_organization"`
	OrganizationName *string `gorm:"index" json:"organization_name"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}
