// Package export renders the validation summary as a reviewer-facing
// workbook: one row per interview plus the corpus aggregates.
package export

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "interview-insights-go/internal/errors"
	"interview-insights-go/internal/types"
)

const (
	interviewsSheet = "Interviews"
	summarySheet    = "Summary"
)

var interviewHeaders = []string{
	"Interview ID", "Status", "Quality", "Coverage %", "Analyzed Turns",
	"Total Turns", "Confidence", "API Calls", "Cost USD", "Seconds", "Issues",
}

// WriteWorkbook writes the two-sheet review workbook to path.
func WriteWorkbook(path string, summary *types.ValidationSummary) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", interviewsSheet); err != nil {
		return apperrors.Wrap(err, "cannot name interviews sheet")
	}
	if _, err := f.NewSheet(summarySheet); err != nil {
		return apperrors.Wrap(err, "cannot create summary sheet")
	}

	if err := writeInterviews(f, summary); err != nil {
		return err
	}
	if err := writeAggregates(f, summary); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return apperrors.Wrap(err, "cannot save workbook",
			map[string]interface{}{"path": path})
	}
	return nil
}

func writeInterviews(f *excelize.File, summary *types.ValidationSummary) error {
	for col, header := range interviewHeaders {
		if err := setCell(f, interviewsSheet, col+1, 1, header); err != nil {
			return err
		}
	}

	for i, r := range summary.Interviews {
		row := i + 2
		values := []interface{}{
			r.InterviewID,
			string(r.Status),
			r.QualityScore,
			r.CoveragePercentage,
			r.AnalyzedTurns,
			r.TotalTurns,
			r.OverallConfidence,
			r.APICalls,
			r.CostUSD,
			r.ProcessingSeconds,
			strings.Join(r.Issues, "; "),
		}
		for col, v := range values {
			if err := setCell(f, interviewsSheet, col+1, row, v); err != nil {
				return err
			}
		}
	}

	if err := f.SetColWidth(interviewsSheet, "A", "A", 24); err != nil {
		return apperrors.Wrap(err, "cannot size interviews sheet")
	}
	if err := f.SetColWidth(interviewsSheet, "K", "K", 48); err != nil {
		return apperrors.Wrap(err, "cannot size interviews sheet")
	}
	return nil
}

func writeAggregates(f *excelize.File, summary *types.ValidationSummary) error {
	rows := [][2]interface{}{
		{"Run ID", summary.RunID},
		{"Generated At", summary.GeneratedAt.Format("2006-01-02 15:04:05 MST")},
		{"Total Interviews", summary.TotalInterviews},
		{"Accepted", summary.Accepted},
		{"Flagged For Review", summary.Flagged},
		{"Success Rate %", summary.SuccessRate},
		{"Average Quality", summary.AverageQuality},
		{"Average Coverage %", summary.AverageCoverage},
		{"Total Cost USD", summary.TotalCostUSD},
		{"Average Cost USD", summary.AverageCostUSD},
		{"Total API Calls", summary.TotalAPICalls},
		{"Quality High (>= 0.95)", summary.Distribution.High},
		{"Quality Medium (>= 0.75)", summary.Distribution.Medium},
		{"Quality Low (< 0.75)", summary.Distribution.Low},
	}

	for i, pair := range rows {
		if err := setCell(f, summarySheet, 1, i+1, pair[0]); err != nil {
			return err
		}
		if err := setCell(f, summarySheet, 2, i+1, pair[1]); err != nil {
			return err
		}
	}

	if err := f.SetColWidth(summarySheet, "A", "A", 26); err != nil {
		return apperrors.Wrap(err, "cannot size summary sheet")
	}
	return nil
}

func setCell(f *excelize.File, sheet string, col, row int, value interface{}) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return apperrors.Wrap(err, "bad cell coordinates")
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return apperrors.Wrap(err, fmt.Sprintf("cannot write %s!%s", sheet, cell))
	}
	return nil
}
