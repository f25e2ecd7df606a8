package models

import (
	"strings"
	"time"
)

// BloodRequest is a request for blood. Contact fields are a snapshot taken at submission.
type BloodRequest struct {
	BaseModel

	UserID    string `gorm:"size:36;index;not null" json:"user_id"`
	Requester *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"requester,omitempty"`

	FirstName string `gorm:"not null" json:"first_name"`
	LastName  string `gorm:"not null" json:"last_name"`
	Email     string `gorm:"not null" json:"email"`
	Phone     string `gorm:"not null" json:"phone"`
	Address   string `gorm:"not null" json:"address"`

	DateOfBirth  time.Time    `gorm:"type:date" json:"date_of_birth"`
	Gender       Gender       `gorm:"type:varchar(16)" json:"gender"`
	BloodGroup   BloodGroup   `gorm:"type:varchar(3);index" json:"blood_group"`
	DocumentPath string       `json:"document_path"`
	Status       ReviewStatus `gorm:"type:varchar(16);index;default:'pending'" json:"status"`
	AdminRemarks *string      `gorm:"type:text" json:"admin_remarks"`
}

// RequesterName is the full name captured at submission time.
func (r BloodRequest) RequesterName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}
