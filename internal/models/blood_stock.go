package models

// BloodStock is an organization's inventory for one blood group.
type BloodStock struct {
	BaseModel

	OrganizationID string     `gorm:"size:36;not null;uniqueIndex:idx_blood_stock_org_group" json:"organization_id"`
	Organization   *User      `gorm:"foreignKey:OrganizationID;constraint:OnDelete:CASCADE" json:"-"`
	BloodGroup     BloodGroup `gorm:"type:varchar(3);not null;uniqueIndex:idx_blood_stock_org_group" json:"blood_group"`
	Quantity       int        `gorm:"not null;default:0;check:quantity >= 0" json:"quantity"`
}
