package models

import (
	"fmt"
	"strconv"
)

// PackageDuration is the hour split encoded in a package identifier.
type PackageDuration struct {
	Sailing   float64 `json:"sailing"`
	Anchorage float64 `json:"anchorage"`
	Total     float64 `json:"total"`
}

func (d PackageDuration) IsZero() bool {
	return d.Total == 0
}

// Label renders the split as "1.5 hours sailing + 0.5 hour anchorage".
func (d PackageDuration) Label() string {
	return fmt.Sprintf("%s %s sailing + %s hour anchorage",
		formatHours(d.Sailing), hourWord(d.Sailing), formatHours(d.Anchorage))
}

// PricedPackageOption is a package priced at a candidate start time. Never persisted.
type PricedPackageOption struct {
	Identifier     string  `json:"identifier"`
	SailingHours   float64 `json:"sailingHours"`
	AnchorageHours float64 `json:"anchorageHours"`
	Price          float64 `json:"price"`
	Label          string  `json:"label"`
}

func formatHours(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func hourWord(v float64) string {
	if v == 1 {
		return "hour"
	}
	return "hours"
}

// FormatAmount renders a rupee amount without trailing zeros.
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
