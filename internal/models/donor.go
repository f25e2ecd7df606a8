package models

// Donor is a volunteer's offer to donate against one blood request.
type Donor struct {
	BaseModel

	BloodRequestID string        `gorm:"size:36;index;not null" json:"blood_request_id"`
	BloodRequest   *BloodRequest `gorm:"constraint:OnDelete:CASCADE" json:"blood_request,omitempty"`
	UserID         string        `gorm:"size:36;index;not null" json:"user_id"`
	User           *User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`

	Name       string       `gorm:"not null" json:"name"`
	Phone      string       `gorm:"not null" json:"phone"`
	Email      string       `json:"email"`
	BloodGroup BloodGroup   `gorm:"type:varchar(3)" json:"blood_group"`
	Message    string       `gorm:"type:text" json:"message"`
	Status     ReviewStatus `gorm:"type:varchar(16);index;default:'pending'" json:"status"`

	// ActiveOfferKey is set while the offer is pending and cleared on decision,
	// so the unique index admits one pending offer per (request, user).
	ActiveOfferKey *string `gorm:"uniqueIndex;size:80" json:"-"`
}

// OfferKey builds the ActiveOfferKey for a request/user pair.
func OfferKey(requestID, userID string) string {
	return requestID + ":" + userID
}
