package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)

	keep := BaseModel{ID: "fixed"}
	require.NoError(t, keep.BeforeCreate(nil))
	require.Equal(t, "fixed", keep.ID)
}

func TestParseBloodGroup(t *testing.T) {
	for _, raw := range []string{"a+", " O- ", "AB+", "ab-"} {
		group, ok := ParseBloodGroup(raw)
		require.True(t, ok, raw)
		require.True(t, group.Valid())
	}

	_, ok := ParseBloodGroup("C+")
	require.False(t, ok)
	require.Len(t, BloodGroups, 8)
}

func TestReviewStatus(t *testing.T) {
	status, ok := ParseReviewStatus(" Approved ")
	require.True(t, ok)
	require.Equal(t, StatusApproved, status)
	require.True(t, status.Terminal())
	require.False(t, StatusPending.Terminal())

	_, ok = ParseReviewStatus("cancelled")
	require.False(t, ok)
}

func TestParseGender(t *testing.T) {
	g, ok := ParseGender("FEMALE")
	require.True(t, ok)
	require.Equal(t, GenderFemale, g)

	_, ok = ParseGender("unknown")
	require.False(t, ok)
}

func TestCampaignStatusAt(t *testing.T) {
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	c := Campaign{StartAt: start, EndAt: start.Add(8 * time.Hour)}

	require.Equal(t, CampaignUpcoming, c.StatusAt(start.Add(-time.Minute)))
	require.Equal(t, CampaignOngoing, c.StatusAt(start))
	require.Equal(t, CampaignCompleted, c.StatusAt(start.Add(8*time.Hour)))
}

func TestNamesAndKeys(t *testing.T) {
	u := User{FirstName: " Ravi ", LastName: "Kumar"}
	require.Equal(t, "Ravi Kumar", u.FullName())

	r := BloodRequest{FirstName: "Ravi", LastName: "Kumar"}
	require.Equal(t, "Ravi Kumar", r.RequesterName())

	require.Equal(t, "req-1:user-2", OfferKey("req-1", "user-2"))
}
