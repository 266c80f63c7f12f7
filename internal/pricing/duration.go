package pricing

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"waterz/internal/models"
)

var (
	sailingPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)_hours?_sailing`)
	anchoragePattern = regexp.MustCompile(`(\d+(?:\.\d+)?)_hours?_anchorage`)
)

// ParseDuration extracts the sailing and anchorage hours from a package identifier.
// Missing or malformed components are zero; it never fails.
func ParseDuration(identifier string) models.PackageDuration {
	s := strings.ToLower(identifier)
	d := models.PackageDuration{
		Sailing:   extractHours(sailingPattern, s),
		Anchorage: extractHours(anchoragePattern, s),
	}
	d.Total = d.Sailing + d.Anchorage
	return d
}

func extractHours(re *regexp.Regexp, s string) float64 {
	m := re.FindStringSubmatch(s)
	if len(m) < 2 {
		return 0
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil || v < 0 {
		return 0
	}
	// only half-hour steps are bookable
	if math.Mod(v*2, 1) != 0 {
		return 0
	}
	return v
}
