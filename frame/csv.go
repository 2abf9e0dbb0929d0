package frame

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"babylon/docstore/appcontext"
)

// FromCSV reads a CSV file from a given path and returns its contents as a
// Frame. The header row defines the column set. Scalar values are inferred
// per cell: int64, then float64, then bool, falling back to string.
func FromCSV(ctx context.Context, filePath string) (*Frame, error) {
	logger := appcontext.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "Parsing frame from csv", "filePath", filePath)

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.Comma = ','

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			// Empty file parses to an empty frame.
			return &Frame{}, nil
		}
		return nil, fmt.Errorf("failed to read CSV header from file %s: %w", filePath, err)
	}

	f, err := New(header)
	if err != nil {
		return nil, err
	}

	for {
		record, readErr := reader.Read()
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to read record from CSV in file %s: %w", filePath, readErr)
		}

		if len(record) < len(header) {
			logger.WarnContext(ctx, "Skipping invalid record", "reason", "not enough columns", "file", filePath)
			continue
		}

		row := make(Record, len(header))
		for i, col := range header {
			row[col] = InferScalar(record[i])
		}

		if appendErr := f.Append(row); appendErr != nil {
			return nil, appendErr
		}
	}

	return f, nil
}

// WriteCSV writes the frame to a CSV file at the given path, header first.
func WriteCSV(ctx context.Context, f *Frame, filePath string) error {
	logger := appcontext.LoggerFromContext(ctx)
	logger.InfoContext(ctx, "Writing frame to csv", "filePath", filePath, "records", f.Len())

	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file %s: %w", filePath, err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	columns := f.Columns()
	if err := writer.Write(columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, row := range f.Records() {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = formatValue(row[col])
		}
		if err := writer.Write(cells); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}

	return nil
}

// InferScalar converts a CSV cell into the narrowest scalar that parses.
func InferScalar(cell string) any {
	if cell == "" {
		return ""
	}
	if i, err := strconv.ParseInt(cell, 10, 64); err == nil {
		return i
	}
	if fl, err := strconv.ParseFloat(cell, 64); err == nil {
		return fl
	}
	if b, err := strconv.ParseBool(cell); err == nil {
		return b
	}

	return cell
}

// formatValue renders a scalar back into its CSV cell form.
func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
