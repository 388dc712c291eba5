package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/Sternrassler/metafield-export/pkg/record"
)

// WriteCSV writes a header row and one row per record. Lines end in "\n".
// Fields are quoted by encoding/csv rules, which also quote values with
// leading whitespace.
func WriteCSV(w io.Writer, records []record.Record) error {
	header, err := Header(records)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	cw.UseCRLF = false

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, r := range records {
		if err := cw.Write(r.Project(header)); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("failed to flush CSV writer: %w", err)
	}
	return nil
}
