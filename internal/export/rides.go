package export

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"waterz/internal/models"
)

const (
	SheetCurrent  = "Current rides"
	SheetPrevious = "Previous rides"
)

var rideHeaders = []string{
	"Booking ID", "Date", "Time", "Zone", "Location", "Package", "Duration (h)",
	"People", "Total (₹)", "Status", "Payment", "Ride",
}

// Workbook builds a workbook with one sheet per ride list.
func Workbook(current, previous []models.RideView) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := writeSheet(f, SheetCurrent, current); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeSheet(f, SheetPrevious, previous); err != nil {
		f.Close()
		return nil, err
	}

	// Удаляем стандартный лист
	_ = f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(SheetCurrent); err == nil {
		f.SetActiveSheet(idx)
	}
	return f, nil
}

// WriteRides streams the workbook to w.
func WriteRides(w io.Writer, current, previous []models.RideView) error {
	f, err := Workbook(current, previous)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// SaveRides writes the workbook into dir and returns the file path.
func SaveRides(dir string, current, previous []models.RideView, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}

	f, err := Workbook(current, previous)
	if err != nil {
		return "", err
	}
	defer f.Close()

	path := filepath.Join(dir, fmt.Sprintf("rides_export_%s.xlsx", now.Format("2006-01-02_15-04-05")))
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func writeSheet(f *excelize.File, sheet string, rides []models.RideView) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return fmt.Errorf("error creating style: %w", err)
	}

	for i, h := range rideHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(rideHeaders), 1)
	_ = f.SetCellStyle(sheet, "A1", last, headerStyle)

	styles := make(map[string]int)
	for i, r := range rides {
		row := i + 2
		values := []interface{}{
			r.ID, r.Date, r.Time, r.Zone, r.Location, r.PackageLabel, r.Duration,
			int(r.PeopleNo), r.TotalAmount, r.Status, r.PaymentStatus, r.RideStatus,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		color := paymentColor(r.PaymentStatus)
		style, ok := styles[color]
		if !ok {
			style, err = f.NewStyle(&excelize.Style{
				Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
			})
			if err != nil {
				return fmt.Errorf("error creating style: %w", err)
			}
			styles[color] = style
		}
		cell, _ := excelize.CoordinatesToCellName(11, row)
		_ = f.SetCellStyle(sheet, cell, cell, style)
	}

	_ = f.SetColWidth(sheet, "A", "A", 28)
	_ = f.SetColWidth(sheet, "B", "C", 16)
	_ = f.SetColWidth(sheet, "E", "E", 14)
	_ = f.SetColWidth(sheet, "F", "F", 38)
	_ = f.SetColWidth(sheet, "G", "L", 14)
	return nil
}

// paymentColor: green for paid, red for failed, yellow for everything still open.
func paymentColor(status string) string {
	switch strings.ToLower(status) {
	case "paid", "completed", "success":
		return "#C6EFCE"
	case "failed", "cancelled", "canceled", "refunded":
		return "#FFC7CE"
	default:
		return "#FFEB9C"
	}
}
