// Package export serializes collected metafield records to CSV or XLSX.
//
// The header is the attribute list of the first record. Attributes of later
// records that are not in the header are dropped; header attributes a record
// lacks are written as empty cells.
package export

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Sternrassler/metafield-export/pkg/record"
)

// ErrNoRecords is returned when there is nothing to derive a header from.
var ErrNoRecords = errors.New("no records to export")

// Format is an output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported format %q (want csv or xlsx)", name)
	}
}

// Header returns the attribute names of the first record.
func Header(records []record.Record) ([]string, error) {
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records[0].Keys(), nil
}

// Write serializes records to w in the given format.
func Write(w io.Writer, format Format, records []record.Record) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatXLSX:
		return WriteXLSX(w, records)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}

// WriteFile writes records to path, replacing any existing file. Nothing is
// created when records is empty or serialization fails. New files get mode
// 0644.
func WriteFile(path string, format Format, records []record.Record) error {
	if len(records) == 0 {
		return ErrNoRecords
	}

	// An existing file keeps its permissions.
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := Write(tmp, format, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close output file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("failed to set output file mode: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move output file into place: %w", err)
	}
	return nil
}
