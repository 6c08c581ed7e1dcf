package report

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"gavrptw/internal/opt"
)

const (
	statsSheet  = "Stats"
	routesSheet = "Routes"
)

// BuildXLSX lays out the generation history on a "Stats" sheet and the best
// solution on a "Routes" sheet. The caller closes the returned file.
func BuildXLSX(res opt.Result) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", statsSheet); err != nil {
		f.Close()
		return nil, err
	}
	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(statsSheet, "A1", &header); err != nil {
		f.Close()
		return nil, err
	}
	for i, s := range res.History {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []any{s.Generation, s.Evaluated, s.Min, s.Max, s.Mean, s.Std, s.AvgCost}
		if err := f.SetSheetRow(statsSheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}

	if _, err := f.NewSheet(routesSheet); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetSheetRow(routesSheet, "A1", &[]any{"vehicle", "route", "load", "overloaded"}); err != nil {
		f.Close()
		return nil, err
	}
	for i, r := range res.Routes {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{i + 1, routeString(r), r.Load, r.Overloaded}
		if err := f.SetSheetRow(routesSheet, cell, &row); err != nil {
			f.Close()
			return nil, err
		}
	}
	last := len(res.Routes) + 3
	_ = f.SetCellValue(routesSheet, fmt.Sprintf("A%d", last), "total cost")
	_ = f.SetCellValue(routesSheet, fmt.Sprintf("B%d", last), res.Cost)
	return f, nil
}

// ExportXLSX writes BuildXLSX to path.
func ExportXLSX(path string, res opt.Result) error {
	f, err := BuildXLSX(res)
	if err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("export xlsx: %w", err)
	}
	return nil
}
