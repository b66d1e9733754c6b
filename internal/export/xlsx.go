package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"qservice/api/internal/report"
)

const equipmentSheet = "Geräte"

// renderEquipmentLog writes every device of the case into a workbook.
// Unfinished devices keep empty consumption and duration cells.
func renderEquipmentLog(r report.Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", equipmentSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := []any{"Geräte-Nr.", "Wohnung", "Raum", "Start", "Ende", "Zähler Start (kWh)", "Zähler Ende (kWh)", "Betriebsstd.", "Dauer (Tage)", "Verbrauch (kWh)"}
	if err := f.SetSheetRow(equipmentSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	row := 2
	for _, e := range r.Equipment {
		values := []any{
			e.DeviceNumber,
			e.Apartment,
			e.Room,
			e.StartDate,
			e.EndDate,
			numberOrText(e.CounterStart),
			numberOrText(e.CounterEnd),
			numberOrText(e.Hours),
			"",
			"",
		}
		if d, ok := e.Days(); ok {
			values[8] = d
		}
		if kwh, ok := e.Consumption(); ok && e.Finished() {
			values[9] = kwh
		}
		cell, err := excelize.CoordinatesToCellName(1, row)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(equipmentSheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", row, err)
		}
		row++
	}

	summary := report.Summarize(r.Equipment)
	totals := []any{"Gesamt", "", "", "", "", "", "", summary.TotalHours, "", summary.TotalKWh}
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(equipmentSheet, cell, &totals); err != nil {
		return nil, fmt.Errorf("write totals: %w", err)
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil {
		last, _ := excelize.CoordinatesToCellName(len(header), row)
		_ = f.SetCellStyle(equipmentSheet, "A1", "J1", style)
		_ = f.SetCellStyle(equipmentSheet, cell, last, style)
	}
	numFmt := "0.00"
	if kwhStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: &numFmt}); err == nil {
		_ = f.SetCellStyle(equipmentSheet, "J2", fmt.Sprintf("J%d", row), kwhStyle)
	}
	_ = f.SetColWidth(equipmentSheet, "A", "J", 16)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func numberOrText(t report.Text) any {
	if v, ok := t.Float(); ok {
		return v
	}
	return t.String()
}
