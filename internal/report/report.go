// Package report serializes analyzer rows under the stable report
// contract: fixed column order, one header row, YYYY-MM-DD dates, rates
// with one decimal place. Zero-trace days are rows like any other.
package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"tracelens/internal/analyze"
	"tracelens/internal/format"
)

// SingleHeader is the column order of a single-signal report.
var SingleHeader = []string{"date", "total_traces", "failing_count", "rate_percent"}

// MultiHeader is the column order of a multi-project report.
var MultiHeader = []string{"project", "date", "total_traces", "failing_count", "rate_percent"}

// CombinedHeader is the column order of a combined report.
var CombinedHeader = []string{
	"date", "total_traces",
	"scraper_error_count", "scraper_error_percent",
	"availability_false_count", "availability_false_percent",
}

// WriteCSV writes a single-signal report.
func WriteCSV(w io.Writer, rows []analyze.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(SingleHeader); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Date,
			strconv.Itoa(r.TotalTraces),
			strconv.Itoa(r.FailingCount),
			format.Percent(r.RatePercent),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: write row %s: %w", r.Date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteMultiCSV writes a single-signal report spanning several projects.
func WriteMultiCSV(w io.Writer, rows []analyze.Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(MultiHeader); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Project,
			r.Date,
			strconv.Itoa(r.TotalTraces),
			strconv.Itoa(r.FailingCount),
			format.Percent(r.RatePercent),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: write row %s/%s: %w", r.Project, r.Date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCombinedCSV writes a combined report.
func WriteCombinedCSV(w io.Writer, rows []analyze.CombinedRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CombinedHeader); err != nil {
		return fmt.Errorf("report: write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Date,
			strconv.Itoa(r.TotalTraces),
			strconv.Itoa(r.ScraperErrorCount),
			format.Percent(r.ScraperErrorPercent),
			strconv.Itoa(r.AvailabilityFalseCount),
			format.Percent(r.AvailabilityFalsePercent),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("report: write row %s: %w", r.Date, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// RenderTable renders a single-signal report for the terminal.
func RenderTable(rows []analyze.Row, mode format.Mode) string {
	tbl := format.NewTable(mode)
	tbl.Header(SingleHeader...)
	tbl.AlignRight(2, 3, 4)
	var total, failing int
	for _, r := range rows {
		tbl.Row(r.Date, r.TotalTraces, r.FailingCount, format.Percent(r.RatePercent))
		total += r.TotalTraces
		failing += r.FailingCount
	}
	tbl.Footer("total", total, failing, format.Percent(analyze.Rate(failing, total)))
	return tbl.String()
}

// RenderMultiTable renders a multi-project single-signal report.
func RenderMultiTable(rows []analyze.Row, mode format.Mode) string {
	tbl := format.NewTable(mode)
	tbl.Header(MultiHeader...)
	tbl.AlignRight(3, 4, 5)
	var total, failing int
	for _, r := range rows {
		tbl.Row(r.Project, r.Date, r.TotalTraces, r.FailingCount, format.Percent(r.RatePercent))
		total += r.TotalTraces
		failing += r.FailingCount
	}
	tbl.Footer("total", "", total, failing, format.Percent(analyze.Rate(failing, total)))
	return tbl.String()
}

// RenderCombinedTable renders a combined report for the terminal.
func RenderCombinedTable(rows []analyze.CombinedRow, mode format.Mode) string {
	tbl := format.NewTable(mode)
	tbl.Header(CombinedHeader...)
	tbl.AlignRight(2, 3, 4, 5, 6)
	for _, r := range rows {
		tbl.Row(r.Date, r.TotalTraces,
			r.ScraperErrorCount, format.Percent(r.ScraperErrorPercent),
			r.AvailabilityFalseCount, format.Percent(r.AvailabilityFalsePercent))
	}
	return tbl.String()
}
