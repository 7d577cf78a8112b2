// Package exchange moves employee sets in and out of files: JSON, CSV and
// Excel, in both directions. Every imported row goes through the employee
// normalizer so heterogeneous headers collapse onto the canonical schema.
package exchange

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/karlutxo/zk-tools/internal/employee"
	dErrors "github.com/karlutxo/zk-tools/pkg/domain-errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ParseFile converts an uploaded employee file into normalized records.
// Validation problems (empty file, unknown extension, malformed payload)
// come back as bad-request domain errors before any device interaction.
func ParseFile(filename string, payload []byte) ([]employee.Employee, error) {
	name := strings.TrimSpace(filename)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "select a file to import")
	}
	if len(payload) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "the employee file is empty")
	}

	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(name), ".")) {
	case "json":
		return parseJSON(payload)
	case "csv":
		return parseCSV(payload)
	case "xlsx", "xlsm":
		return parseWorkbook(payload)
	default:
		return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported file format, use JSON, CSV or Excel")
	}
}

func parseJSON(payload []byte) ([]employee.Employee, error) {
	payload = bytes.TrimPrefix(payload, utf8BOM)
	var items []any
	if err := json.Unmarshal(payload, &items); err != nil {
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, fmt.Sprintf("invalid JSON file: %v", err), err)
	}
	employees := make([]employee.Employee, 0, len(items))
	for _, item := range items {
		record, ok := item.(map[string]any)
		if !ok {
			continue
		}
		employees = append(employees, employee.Normalize(record))
	}
	return employees, nil
}

func parseCSV(payload []byte) ([]employee.Employee, error) {
	payload = bytes.TrimPrefix(payload, utf8BOM)
	reader := csv.NewReader(bytes.NewReader(payload))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []employee.Employee{}, nil
		}
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, fmt.Sprintf("invalid CSV file: %v", err), err)
	}
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	var employees []employee.Employee
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, dErrors.Wrap(dErrors.CodeBadRequest, fmt.Sprintf("invalid CSV file: %v", err), err)
		}
		employees = append(employees, employee.Normalize(rowToRecord(header, row)))
	}
	return employees, nil
}

func parseWorkbook(payload []byte) ([]employee.Employee, error) {
	file, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, fmt.Sprintf("invalid Excel file: %v", err), err)
	}
	defer file.Close()

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		return []employee.Employee{}, nil
	}
	rows, err := file.GetRows(sheets[0])
	if err != nil {
		return nil, dErrors.Wrap(dErrors.CodeBadRequest, fmt.Sprintf("invalid Excel file: %v", err), err)
	}
	if len(rows) == 0 {
		return []employee.Employee{}, nil
	}

	header := rows[0]
	for i := range header {
		header[i] = strings.ToLower(strings.TrimSpace(header[i]))
	}

	employees := make([]employee.Employee, 0, len(rows)-1)
	for _, row := range rows[1:] {
		employees = append(employees, employee.Normalize(rowToRecord(header, row)))
	}
	return employees, nil
}

// rowToRecord zips header names and cells, dropping cells without a header.
func rowToRecord(header, row []string) map[string]any {
	record := make(map[string]any, len(header))
	for i, cell := range row {
		if i >= len(header) || header[i] == "" {
			continue
		}
		record[header[i]] = cell
	}
	return record
}
