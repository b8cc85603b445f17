package exporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"markscope/internal/snapshot"
)

// Workbook builds the marks workbook: one sheet of assignments and one of
// module registrations.
func Workbook(snap *snapshot.Snapshot) (*excelize.File, error) {
	assignments, err := AssignmentTable(snap)
	if err != nil {
		return nil, err
	}
	tables := []Table{assignments, ModuleTable(snap)}

	f := excelize.NewFile()
	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"3C1053"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for i, t := range tables {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), t.Name); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(t.Name); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeSheet(f, t, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write sheet %s: %w", t.Name, err)
		}
	}
	return f, nil
}

// WriteWorkbook writes the marks workbook as xlsx to out.
func WriteWorkbook(out io.Writer, snap *snapshot.Snapshot) error {
	f, err := Workbook(snap)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveWorkbook writes the marks workbook to path.
func SaveWorkbook(path string, snap *snapshot.Snapshot) error {
	f, err := Workbook(snap)
	if err != nil {
		return err
	}
	defer f.Close()

	return f.SaveAs(path)
}

// writeSheet writes the header and rows of t. excelize applies its default
// date format to time.Time cells.
func writeSheet(f *excelize.File, t Table, headerStyle int) error {
	headers := make([]interface{}, len(t.Headers))
	for i, h := range t.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(t.Name, "A1", &headers); err != nil {
		return err
	}

	lastCol, err := excelize.ColumnNumberToName(len(t.Headers))
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(t.Name, "A1", lastCol+"1", headerStyle); err != nil {
		return err
	}

	for r, row := range t.Rows {
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(t.Name, cell, &values); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(t.Name, "A", lastCol, 18); err != nil {
		return err
	}
	if len(t.Rows) > 0 {
		ref := fmt.Sprintf("A1:%s%d", lastCol, len(t.Rows)+1)
		if err := f.AutoFilter(t.Name, ref, nil); err != nil {
			return err
		}
	}
	return nil
}
