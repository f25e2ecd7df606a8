package models

import "strings"

// BloodGroup is one of the eight canonical ABO/Rh groups.
type BloodGroup string

const (
	BloodGroupAPos  BloodGroup = "A+"
	BloodGroupANeg  BloodGroup = "A-"
	BloodGroupBPos  BloodGroup = "B+"
	BloodGroupBNeg  BloodGroup = "B-"
	BloodGroupABPos BloodGroup = "AB+"
	BloodGroupABNeg BloodGroup = "AB-"
	BloodGroupOPos  BloodGroup = "O+"
	BloodGroupONeg  BloodGroup = "O-"
)

// BloodGroups lists every accepted blood group in display order.
var BloodGroups = []BloodGroup{
	BloodGroupAPos, BloodGroupANeg,
	BloodGroupBPos, BloodGroupBNeg,
	BloodGroupABPos, BloodGroupABNeg,
	BloodGroupOPos, BloodGroupONeg,
}

// Valid reports whether g is a canonical blood group.
func (g BloodGroup) Valid() bool {
	switch g {
	case BloodGroupAPos, BloodGroupANeg, BloodGroupBPos, BloodGroupBNeg,
		BloodGroupABPos, BloodGroupABNeg, BloodGroupOPos, BloodGroupONeg:
		return true
	default:
		return false
	}
}

// ParseBloodGroup normalises case and whitespace ("ab+" -> "AB+").
func ParseBloodGroup(value string) (BloodGroup, bool) {
	g := BloodGroup(strings.ToUpper(strings.TrimSpace(value)))
	return g, g.Valid()
}

// Gender recorded on a blood request.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
	GenderOther  Gender = "other"
)

// Valid reports whether g is an accepted gender value.
func (g Gender) Valid() bool {
	switch g {
	case GenderMale, GenderFemale, GenderOther:
		return true
	default:
		return false
	}
}

// ParseGender normalises case and whitespace.
func ParseGender(value string) (Gender, bool) {
	g := Gender(strings.ToLower(strings.TrimSpace(value)))
	return g, g.Valid()
}

// ReviewStatus is shared by blood requests, donor offers and organization requests.
type ReviewStatus string

const (
	StatusPending  ReviewStatus = "pending"
	StatusApproved ReviewStatus = "approved"
	StatusRejected ReviewStatus = "rejected"
)

// Valid reports whether s is a known review status.
func (s ReviewStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed out of s.
func (s ReviewStatus) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected:
		return true
	case StatusPending:
		return false
	default:
		return false
	}
}

// ParseReviewStatus normalises case and whitespace.
func ParseReviewStatus(value string) (ReviewStatus, bool) {
	s := ReviewStatus(strings.ToLower(strings.TrimSpace(value)))
	return s, s.Valid()
}

// CampaignStatus follows the campaign calendar.
type CampaignStatus string

const (
	CampaignUpcoming  CampaignStatus = "upcoming"
	CampaignOngoing   CampaignStatus = "ongoing"
	CampaignCompleted CampaignStatus = "completed"
)

// InterestStatus is a user's vote on a campaign.
type InterestStatus string

const (
	InterestInterested    InterestStatus = "interested"
	InterestNotInterested InterestStatus = "not_interested"
)

// Valid reports whether s is a known vote.
func (s InterestStatus) Valid() bool {
	switch s {
	case InterestInterested, InterestNotInterested:
		return true
	default:
		return false
	}
}
