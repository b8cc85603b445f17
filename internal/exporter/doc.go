// Package exporter writes the charted marks as tables.
//
// AssignmentTable and ModuleTable flatten a snapshot into rows. The rows feed
// two outputs: CSV through CSVWriter or EncodeTable, and an xlsx workbook with
// one sheet per table through WriteWorkbook or SaveWorkbook.
//
// Example usage:
//
//	snap, err := loader.Get(ctx)
//	if err != nil {
//		return err
//	}
//	if err := exporter.SaveWorkbook(paths.GetExportPath("marks.xlsx"), snap); err != nil {
//		return err
//	}
package exporter
