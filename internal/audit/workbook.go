package audit

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Workbook accumulates the null summaries of every dataset in a run and
// saves them as one xlsx file, one sheet per dataset. Regenerated
// wholesale each run, like the other audit artifacts.
type Workbook struct {
	datasets []string
	counts   map[string][]NullCount
}

func NewWorkbook() *Workbook {
	return &Workbook{counts: map[string][]NullCount{}}
}

// Add records a dataset's null summary. Adding the same dataset twice
// replaces the earlier summary.
func (w *Workbook) Add(dataset string, counts []NullCount) {
	if _, ok := w.counts[dataset]; !ok {
		w.datasets = append(w.datasets, dataset)
	}
	w.counts[dataset] = counts
}

// Save writes the workbook, overwriting any prior file at path.
func (w *Workbook) Save(path string) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, dataset := range w.datasets {
		// Sheet names are capped at 31 chars by the xlsx format.
		sheet := dataset
		if len(sheet) > 31 {
			sheet = sheet[:31]
		}
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return fmt.Errorf("audit: workbook sheet %s: %w", dataset, err)
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return fmt.Errorf("audit: workbook sheet %s: %w", dataset, err)
		}

		if err := f.SetSheetRow(sheet, "A1", &[]any{"column", "null_count"}); err != nil {
			return err
		}
		for r, c := range w.counts[dataset] {
			cell, err := excelize.CoordinatesToCellName(1, r+2)
			if err != nil {
				return err
			}
			if err := f.SetSheetRow(sheet, cell, &[]any{c.Column, c.Count}); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("audit: save workbook %s: %w", path, err)
	}
	return nil
}
