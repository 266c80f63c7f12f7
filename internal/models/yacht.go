package models

import "strings"

// Rate is a price per hour for each pricing tier.
type Rate struct {
	PeakTime    float64 `json:"peakTime" validate:"gte=0"`
	NonPeakTime float64 `json:"nonPeakTime" validate:"gte=0"`
}

// For returns the hourly price for the given tier.
func (r Rate) For(isPeak bool) float64 {
	if isPeak {
		return r.PeakTime
	}
	return r.NonPeakTime
}

type RateCard struct {
	Sailing   Rate `json:"sailing"`
	Anchoring Rate `json:"anchoring"`
}

type AddonService struct {
	Service      string  `json:"service" validate:"required"`
	PricePerHour float64 `json:"pricePerHour" validate:"gte=0"`
}

type Yacht struct {
	ID            string         `json:"_id" validate:"required"`
	Name          string         `json:"name"`
	Location      string         `json:"location"`
	YachtType     string         `json:"YachtType"`
	Capacity      int            `json:"capacity" validate:"gte=0"`
	Description   string         `json:"description,omitempty"`
	Images        []string       `json:"images"`
	AddonServices []AddonService `json:"addonServices" validate:"dive"`
	PackageTypes  []string       `json:"packageTypes"`
	Price         RateCard       `json:"price"`
}

// Addon looks up an add-on by its service name.
func (y *Yacht) Addon(name string) (AddonService, bool) {
	for _, a := range y.AddonServices {
		if a.Service == name {
			return a, true
		}
	}
	return AddonService{}, false
}

// OffersPackage reports whether the identifier is one of the yacht's package types.
func (y *Yacht) OffersPackage(identifier string) bool {
	for _, p := range y.PackageTypes {
		if strings.EqualFold(p, identifier) {
			return true
		}
	}
	return false
}

// YachtFilter is the ideal-yacht search request.
type YachtFilter struct {
	StartDate string `json:"startDate"`
	Location  string `json:"location"`
	PeopleNo  string `json:"PeopleNo"`
}
