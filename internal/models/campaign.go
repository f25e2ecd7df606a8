package models

import "time"

// Campaign is an admin-authored donation event.
type Campaign struct {
	BaseModel

	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Location    string         `gorm:"not null" json:"location"`
	ImagePath   string         `json:"image_path"`
	StartAt     time.Time      `gorm:"index" json:"start_at"`
	EndAt       time.Time      `gorm:"index" json:"end_at"`
	Status      CampaignStatus `gorm:"type:varchar(16);index;default:'upcoming'" json:"status"`
	CreatedBy   string         `gorm:"size:36" json:"created_by"`

	Interests []CampaignInterest `gorm:"foreignKey:CampaignID" json:"-"`
}

// StatusAt derives the calendar status of the campaign at t.
func (c Campaign) StatusAt(t time.Time) CampaignStatus {
	switch {
	case t.Before(c.StartAt):
		return CampaignUpcoming
	case t.Before(c.EndAt):
		return CampaignOngoing
	default:
		return CampaignCompleted
	}
}

// CampaignInterest is the join row recording a user's vote on a campaign.
type CampaignInterest struct {
	BaseModel

	CampaignID string         `gorm:"size:36;not null;uniqueIndex:idx_campaign_interest" json:"campaign_id"`
	Campaign   *Campaign      `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	UserID     string         `gorm:"size:36;not null;uniqueIndex:idx_campaign_interest" json:"user_id"`
	User       *User          `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Status     InterestStatus `gorm:"type:varchar(16);not null" json:"status"`
}
