package models

// OrganizationRequest is a user's application to become an organization.
type OrganizationRequest struct {
	BaseModel

	UserID string `gorm:"size:36;index;not null" json:"user_id"`
	User   *User  `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`

	OrganizationName string       `gorm:"not null" json:"organization_name"`
	Address          string       `gorm:"not null" json:"address"`
	Phone            string       `gorm:"not null" json:"phone"`
	PancardPath      string       `json:"pancard_path"`
	Status           ReviewStatus `gorm:"type:varchar(16);index;default:'pending'" json:"status"`
	RejectionReason  *string      `gorm:"type:text" json:"rejection_reason"`
}
