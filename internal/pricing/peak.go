package pricing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"waterz/internal/domain"
)

// PeakWindow is the non-peak range in minutes since midnight, [Start, End).
type PeakWindow struct {
	Start int
	End   int
}

var DefaultPeakWindow = PeakWindow{Start: 8 * 60, End: 17 * 60}

// ParseWindow builds a window from two "HH:MM" 24-hour values.
func ParseWindow(start, end string) (PeakWindow, error) {
	s, err := parse24(start)
	if err != nil {
		return PeakWindow{}, fmt.Errorf("non-peak start: %w", err)
	}
	e, err := parse24(end)
	if err != nil {
		return PeakWindow{}, fmt.Errorf("non-peak end: %w", err)
	}
	if e <= s {
		return PeakWindow{}, fmt.Errorf("non-peak end %s must be after start %s", end, start)
	}
	return PeakWindow{Start: s, End: e}, nil
}

func parse24(v string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(v))
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

type Classifier struct {
	window PeakWindow
}

func NewClassifier(window PeakWindow) *Classifier {
	return &Classifier{window: window}
}

func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultPeakWindow)
}

// IsPeak classifies a "H:MM AM/PM" time of day.
func (c *Classifier) IsPeak(clock string) (bool, error) {
	minutes, err := ParseClock(clock)
	if err != nil {
		return false, err
	}
	return c.isPeakMinutes(minutes), nil
}

// IsPeakAt classifies the wall clock of t in its own location.
func (c *Classifier) IsPeakAt(t time.Time) bool {
	return c.isPeakMinutes(t.Hour()*60 + t.Minute())
}

func (c *Classifier) isPeakMinutes(minutes int) bool {
	return minutes < c.window.Start || minutes >= c.window.End
}

// ParseClock converts "H:MM AM/PM" into minutes since midnight.
func ParseClock(clock string) (int, error) {
	parts := strings.Fields(clock)
	if len(parts) != 2 {
		return 0, domain.NewValidationError("time", "invalid time format %q, expected H:MM AM/PM", clock)
	}

	hm := strings.Split(parts[0], ":")
	if len(hm) != 2 {
		return 0, domain.NewValidationError("time", "invalid time %q", parts[0])
	}
	hour, err := strconv.Atoi(hm[0])
	if err != nil || hour < 1 || hour > 12 {
		return 0, domain.NewValidationError("time", "invalid hour in %q", parts[0])
	}
	minute, err := strconv.Atoi(hm[1])
	if err != nil || len(hm[1]) != 2 || minute < 0 || minute > 59 {
		return 0, domain.NewValidationError("time", "invalid minute in %q", parts[0])
	}

	switch strings.ToUpper(parts[1]) {
	case "AM":
		if hour == 12 {
			hour = 0
		}
	case "PM":
		if hour != 12 {
			hour += 12
		}
	default:
		return 0, domain.NewValidationError("time", "invalid period %q", parts[1])
	}

	return hour*60 + minute, nil
}
