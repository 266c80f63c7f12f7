// Package localtime renders UTC instants in the fixed zone of a yacht location.
// It never consults the process local time zone.
package localtime

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout = "January 2, 2006"
	TimeLayout = "3:04 PM"
)

var (
	gst = time.FixedZone("GST", 4*60*60)
	ist = time.FixedZone("IST", 5*60*60+30*60)
)

// Zone returns the fixed zone for a location. Dubai is GST, everything else IST.
func Zone(location string) *time.Location {
	if strings.Contains(strings.ToLower(location), "dubai") {
		return gst
	}
	return ist
}

// ZoneLabel is the short zone name shown next to times.
func ZoneLabel(location string) string {
	name, _ := time.Time{}.In(Zone(location)).Zone()
	return name
}

// Offset returns the zone offset as "+5:30" / "+4:00".
func Offset(location string) string {
	_, secs := time.Time{}.In(Zone(location)).Zone()
	h := secs / 3600
	m := (secs % 3600) / 60
	return fmt.Sprintf("+%d:%02d", h, m)
}

func ToLocal(t time.Time, location string) time.Time {
	return t.In(Zone(location))
}

func FormatDate(t time.Time, location string) string {
	return ToLocal(t, location).Format(DateLayout)
}

func FormatTime(t time.Time, location string) string {
	return ToLocal(t, location).Format(TimeLayout)
}

// Formatted is a fully rendered instant.
type Formatted struct {
	Date string `json:"date"`
	Time string `json:"time"`
	Zone string `json:"zone"`
}

func Format(t time.Time, location string) Formatted {
	local := ToLocal(t, location)
	name, _ := local.Zone()
	return Formatted{
		Date: local.Format(DateLayout),
		Time: local.Format(TimeLayout),
		Zone: name,
	}
}
