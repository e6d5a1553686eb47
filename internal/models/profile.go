package models

import (
	"fmt"
)

// Plan is the subscription tier shown on the profile.
type Plan string

const (
	PlanFree       Plan = "Free"
	PlanPro        Plan = "Pro"
	PlanEnterprise Plan = "Enterprise"
)

// Valid reports whether p is one of the known plans.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// AdType identifies which generation mode produced an ad.
type AdType string

const (
	AdTypeText   AdType = "text"
	AdTypeImage  AdType = "image"
	AdTypeUpload AdType = "upload"
)

// ParseAdType converts a raw mode string into an AdType.
func ParseAdType(s string) (AdType, error) {
	switch AdType(s) {
	case AdTypeText, AdTypeImage, AdTypeUpload:
		return AdType(s), nil
	}
	return "", fmt.Errorf("unknown ad type %q", s)
}

// Default identity values used on first run and by a profile reset.
const (
	DefaultName     = "John Doe"
	DefaultEmail    = "john.doe@example.com"
	DefaultAvatar   = "👤"
	DefaultJoinDate = "January 2024"
	DefaultPlan     = PlanFree
)

// Profile is the single persisted user record. The JSON layout matches the
// value the web client keeps under its local storage key.
type Profile struct {
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Avatar       string     `json:"avatar"`
	JoinDate     string     `json:"joinDate"`
	Plan         Plan       `json:"plan"`
	AdsGenerated int        `json:"adsGenerated"`
	GeneratedAds []AdRecord `json:"generatedAds"`
}

// AdRecord is one stored generation result.
type AdRecord struct {
	ID          string  `json:"id"`
	Timestamp   string  `json:"timestamp"` // RFC 3339, UTC
	Type        AdType  `json:"type"`
	ProductName string  `json:"productName"`
	Description string  `json:"description"`
	AdText      string  `json:"adText"`
	ImageURL    *string `json:"imageUrl"`
}

// NewAd holds the caller-supplied fields of an AdRecord.
type NewAd struct {
	Type        AdType
	ProductName string
	Description string
	AdText      string
	ImageURL    *string
}

// DefaultProfile returns the profile synthesized on first run.
func DefaultProfile() Profile {
	return Profile{
		Name:         DefaultName,
		Email:        DefaultEmail,
		Avatar:       DefaultAvatar,
		JoinDate:     DefaultJoinDate,
		Plan:         DefaultPlan,
		AdsGenerated: 0,
		GeneratedAds: []AdRecord{},
	}
}

// Clone returns a deep copy of the profile.
func (p Profile) Clone() Profile {
	out := p
	out.GeneratedAds = CloneAds(p.GeneratedAds)
	return out
}

// CloneAds deep-copies a record list, never returning nil.
func CloneAds(ads []AdRecord) []AdRecord {
	out := make([]AdRecord, len(ads))
	for i, ad := range ads {
		out[i] = ad
		if ad.ImageURL != nil {
			u := *ad.ImageURL
			out[i].ImageURL = &u
		}
	}
	return out
}
