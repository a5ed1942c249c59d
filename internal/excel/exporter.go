package excel

import (
	"io"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/example/codecycle/pkg/models"
)

// HistorySheet is the name of the sheet written by ExportHistory
const HistorySheet = "History"

var historyHeader = []interface{}{"Reviewed At", "Slug", "Title", "Result", "Previous Interval", "Next Interval"}

// ExportHistory writes the review logs as an xlsx workbook with one row per review
func ExportHistory(w io.Writer, logs []*models.ReviewLog) error {
	f := excelize.NewFile()
	defer f.Close()

	f.SetSheetName(f.GetSheetName(0), HistorySheet)
	if err := f.SetSheetRow(HistorySheet, "A1", &historyHeader); err != nil {
		return errors.Wrap(err, "failed to write header")
	}
	if err := f.SetColWidth(HistorySheet, "A", "C", 24); err != nil {
		return errors.Wrap(err, "failed to size columns")
	}

	for i, l := range logs {
		axis, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []interface{}{
			l.ReviewedAt.UTC().Format("2006-01-02 15:04:05"),
			l.Slug,
			l.Title,
			string(l.Outcome),
			l.PreviousInterval,
			l.NextInterval,
		}
		if err := f.SetSheetRow(HistorySheet, axis, &row); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i+2)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return errors.Wrap(err, "failed to write workbook")
	}
	return nil
}
