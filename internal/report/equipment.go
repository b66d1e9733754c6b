package report

import (
	"fmt"
	"math"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// Equipment is one drying device placed on site. Readings and hours stay
// text because they are typed in the field and may be incomplete.
type Equipment struct {
	ID           Text   `json:"id"`
	DeviceNumber string `json:"deviceNumber"`
	Apartment    string `json:"apartment"`
	Room         string `json:"room"`
	StartDate    string `json:"startDate"`
	EndDate      string `json:"endDate"`
	CounterStart Text   `json:"counterStart"`
	CounterEnd   Text   `json:"counterEnd"`
	Hours        Text   `json:"hours"`
}

// Consumption is the metered energy in kWh. ok is false until both readings
// parse.
func (e Equipment) Consumption() (value float64, ok bool) {
	start, okStart := e.CounterStart.Float()
	end, okEnd := e.CounterEnd.Float()
	if !okStart || !okEnd {
		return 0, false
	}
	return end - start, true
}

// Days is the whole number of days the device ran, rounded up.
func (e Equipment) Days() (int, bool) {
	start, err := time.Parse(dateLayout, strings.TrimSpace(e.StartDate))
	if err != nil {
		return 0, false
	}
	end, err := time.Parse(dateLayout, strings.TrimSpace(e.EndDate))
	if err != nil {
		return 0, false
	}
	diff := math.Abs(end.Sub(start).Hours() / 24)
	return int(math.Ceil(diff)), true
}

// MissingForEnd names what is still needed before drying may end.
func (e Equipment) MissingForEnd() []string {
	var missing []string
	if strings.TrimSpace(e.EndDate) == "" {
		missing = append(missing, "endDate")
	}
	if strings.TrimSpace(string(e.CounterEnd)) == "" {
		missing = append(missing, "counterEnd")
	}
	if strings.TrimSpace(string(e.Hours)) == "" {
		missing = append(missing, "hours")
	}
	return missing
}

// Finished reports whether the device belongs in the consumption summary.
func (e Equipment) Finished() bool {
	if strings.TrimSpace(e.EndDate) == "" {
		return false
	}
	_, ok := e.Consumption()
	return ok
}

// ConsumptionLabel renders consumption with two decimals, or "" while it is
// not yet available.
func (e Equipment) ConsumptionLabel() string {
	v, ok := e.Consumption()
	if !ok {
		return ""
	}
	return FormatKWh(v)
}

func (e Equipment) DaysLabel() string {
	d, ok := e.Days()
	if !ok {
		return ""
	}
	return fmt.Sprintf("%d", d)
}

func FormatKWh(v float64) string {
	return fmt.Sprintf("%.2f", v)
}

// Summary is the closing equipment table of the document.
type Summary struct {
	Rows       []SummaryRow
	TotalHours float64
	TotalKWh   float64
}

type SummaryRow struct {
	DeviceNumber string
	Apartment    string
	Room         string
	Days         string
	Hours        string
	KWh          string
}

// Summarize builds the table from finished devices only.
func Summarize(equipment []Equipment) Summary {
	var out Summary
	for _, e := range equipment {
		if !e.Finished() {
			continue
		}
		kwh, _ := e.Consumption()
		hours, _ := e.Hours.Float()
		out.TotalKWh += kwh
		out.TotalHours += hours
		out.Rows = append(out.Rows, SummaryRow{
			DeviceNumber: e.DeviceNumber,
			Apartment:    e.Apartment,
			Room:         e.Room,
			Days:         e.DaysLabel(),
			Hours:        strings.TrimSpace(string(e.Hours)),
			KWh:          FormatKWh(kwh),
		})
	}
	return out
}

// Today formats t the way the report stores dates.
func Today(t time.Time) string {
	return t.Format(dateLayout)
}
