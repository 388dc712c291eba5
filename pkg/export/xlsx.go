package export

import (
	"fmt"
	"io"

	"github.com/Sternrassler/metafield-export/pkg/record"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet the XLSX writer fills.
const SheetName = "Sheet1"

// WriteXLSX writes the same rows as WriteCSV into a single-sheet workbook.
// All cells are strings.
func WriteXLSX(w io.Writer, records []record.Record) error {
	header, err := Header(records)
	if err != nil {
		return err
	}

	file := excelize.NewFile()
	defer file.Close()

	sw, err := file.NewStreamWriter(SheetName)
	if err != nil {
		return fmt.Errorf("failed to create stream writer: %w", err)
	}

	if err := setRow(sw, 1, header); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}
	for i, r := range records {
		if err := setRow(sw, i+2, r.Project(header)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	if err := sw.Flush(); err != nil {
		return fmt.Errorf("failed to flush stream: %w", err)
	}
	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(sw *excelize.StreamWriter, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to get cell coordinate: %w", err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return sw.SetRow(cell, cells)
}
