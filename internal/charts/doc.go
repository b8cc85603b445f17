// Package charts assembles the chart pages from a snapshot.
//
// Every page is a Chart with one Panel per academic year. The assembler
// partitions records with package marks, then either plots points with a
// robust linear fit (PageScatter, PageSubmissionDelta) or bins marks on the
// reference scale with a robust Gaussian overlay (PageMarksHistogram,
// PageModuleHistogram). Charts carry only data; drawing them is package
// render's job.
//
// Usage:
//
//	a := charts.NewAssembler(charts.DefaultOptions(), logger)
//	chart, err := a.Assemble(ctx, charts.PageScatter, snap)
//	rows, cols := charts.Layout(len(chart.Panels))
package charts
