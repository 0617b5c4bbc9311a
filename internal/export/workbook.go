package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const (
	SheetWallets = "Unique Wallets"
	SheetMAU     = "MAU"
	SheetDAU     = "DAU"
	SheetRaw     = "Raw Data"
)

// WriteWorkbook writes a single spreadsheet with one sheet per view.
func WriteWorkbook(w io.Writer, ds Dataset) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetWallets); err != nil {
		return fmt.Errorf("error naming sheet: %w", err)
	}
	for _, name := range []string{SheetMAU, SheetDAU, SheetRaw} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("error creating sheet %s: %w", name, err)
		}
	}

	wallets := make([][]any, 0, len(ds.Views.UniqueWallets))
	for _, wallet := range ds.Views.UniqueWallets {
		wallets = append(wallets, []any{wallet})
	}
	mau := make([][]any, 0, len(ds.Views.MonthlyActiveUsers))
	for _, m := range ds.Views.MonthlyActiveUsers {
		mau = append(mau, []any{m.Month, ds.AppName, m.ActiveUsers})
	}
	dau := make([][]any, 0, len(ds.Views.DailyActiveUsers))
	for _, d := range ds.Views.DailyActiveUsers {
		dau = append(dau, []any{d.Date, ds.AppName, d.ActiveUsers})
	}
	raw := make([][]any, 0, len(ds.Events))
	for _, e := range ds.Events {
		row := eventRow(e)
		cells := make([]any, len(row))
		for i, v := range row {
			cells[i] = v
		}
		raw = append(raw, cells)
	}

	sheets := []struct {
		name   string
		header []string
		rows   [][]any
	}{
		{SheetWallets, WalletsHeader, wallets},
		{SheetMAU, MAUHeader, mau},
		{SheetDAU, DAUHeader, dau},
		{SheetRaw, EventsHeader, raw},
	}
	for _, s := range sheets {
		if err := writeSheet(f, s.name, s.header, s.rows); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any) error {
	headerCells := make([]any, len(header))
	for i, h := range header {
		headerCells[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &headerCells); err != nil {
		return fmt.Errorf("error writing %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("error writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
