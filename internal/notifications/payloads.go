// Package notifications defines the notification kinds and their typed payloads.
// Each kind has exactly one payload type; the kind string is the stored discriminator.
package notifications

import (
	"encoding/json"
	"fmt"
	"time"
)

// Kind discriminates the payload stored with a notification.
type Kind string

const (
	KindRequestApproved   Kind = "request-approved"
	KindRequestRejected   Kind = "request-rejected"
	KindNewDonorOffer     Kind = "new-donor-offer"
	KindDonorOfferDecided Kind = "donor-offer-decided"
	KindNewCampaign       Kind = "new-campaign"
)

// RequestDateLayout formats request dates inside payloads.
const RequestDateLayout = "Jan 02, 2006"

// Payload is implemented by every notification payload type.
type Payload interface {
	Kind() Kind
}

// RequestApproved is broadcast to every other user when a blood request is approved.
type RequestApproved struct {
	BloodRequestID string `json:"blood_request_id"`
	RequesterName  string `json:"requester_name"`
	BloodGroup     string `json:"blood_group"`
	RequestDate    string `json:"request_date"`
	Message        string `json:"message"`
}

func (RequestApproved) Kind() Kind { return KindRequestApproved }

// RequestRejected is sent to the requester when their request is rejected.
type RequestRejected struct {
	BloodRequestID  string `json:"blood_request_id"`
	BloodGroup      string `json:"blood_group"`
	RejectionReason string `json:"rejection_reason"`
	RequestDate     string `json:"request_date"`
	Message         string `json:"message"`
}

func (RequestRejected) Kind() Kind { return KindRequestRejected }

// Action describes a follow-up call the recipient can make without another lookup.
type Action struct {
	Name   string `json:"name"`
	Method string `json:"method"`
	Path   string `json:"path"`
	Status string `json:"status"`
}

// NewDonorOffer is sent to the request owner when someone volunteers.
type NewDonorOffer struct {
	BloodRequestID string   `json:"blood_request_id"`
	DonorID        string   `json:"donor_id"`
	DonorName      string   `json:"donor_name"`
	DonorPhone     string   `json:"donor_phone"`
	DonorEmail     string   `json:"donor_email"`
	BloodGroup     string   `json:"blood_group"`
	Message        string   `json:"message"`
	Actions        []Action `json:"actions"`
}

func (NewDonorOffer) Kind() Kind { return KindNewDonorOffer }

// DonorOfferDecided is sent to the volunteer once their offer is approved or rejected.
type DonorOfferDecided struct {
	BloodRequestID string `json:"blood_request_id"`
	DonorID        string `json:"donor_id"`
	Title          string `json:"title"`
	Status         string `json:"status"`
	Message        string `json:"message"`
	Remarks        string `json:"remarks,omitempty"`
}

func (DonorOfferDecided) Kind() Kind { return KindDonorOfferDecided }

// NewCampaign announces a donation campaign.
type NewCampaign struct {
	CampaignID string    `json:"campaign_id"`
	Title      string    `json:"title"`
	Location   string    `json:"location"`
	StartAt    time.Time `json:"start_at"`
	EndAt      time.Time `json:"end_at"`
	Message    string    `json:"message"`
}

func (NewCampaign) Kind() Kind { return KindNewCampaign }

// Encode serialises a payload and returns its discriminator.
func Encode(p Payload) (Kind, []byte, error) {
	if p == nil {
		return "", nil, fmt.Errorf("notifications: nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", nil, fmt.Errorf("notifications: encode %s: %w", p.Kind(), err)
	}
	return p.Kind(), data, nil
}

// Decode rebuilds the typed payload for kind.
func Decode(kind Kind, data []byte) (Payload, error) {
	var p Payload
	switch kind {
	case KindRequestApproved:
		p = &RequestApproved{}
	case KindRequestRejected:
		p = &RequestRejected{}
	case KindNewDonorOffer:
		p = &NewDonorOffer{}
	case KindDonorOfferDecided:
		p = &DonorOfferDecided{}
	case KindNewCampaign:
		p = &NewCampaign{}
	default:
		return nil, fmt.Errorf("notifications: unknown kind %q", kind)
	}
	if len(data) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("notifications: decode %s: %w", kind, err)
	}
	return p, nil
}

// FormatRequestDate renders a timestamp the way payloads carry it.
func FormatRequestDate(t time.Time) string {
	return t.Format(RequestDateLayout)
}
