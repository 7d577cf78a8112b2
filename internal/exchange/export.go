package exchange

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/karlutxo/zk-tools/internal/employee"
	dErrors "github.com/karlutxo/zk-tools/pkg/domain-errors"
)

// Format selects the export serialization.
type Format string

const (
	FormatJSON  Format = "json"
	FormatCSV   Format = "csv"
	FormatExcel Format = "excel"
)

// File is a ready-to-download export.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

type column struct {
	key    string
	header string
}

var exportColumns = []column{
	{"uid", "UID"},
	{"name", "Nombre"},
	{"user_id", "User ID"},
	{"card", "Tarjeta"},
	{"privilege", "Privilegio"},
	{"group_id", "Grupo"},
	{"biometrics", "Biometría"},
}

var enrichmentColumns = []column{
	{"dni", "DNI"},
	{"contract_from", "Alta contrato"},
	{"medical_leave_from", "Baja médica"},
	{"vacation_status", "Vacaciones"},
	{"last_seen", "Visto por última vez"},
}

// Export serializes the employee subset for download. The filename embeds
// the source (colons replaced by dashes) and a timestamp. Enrichment
// columns appear only when at least one record carries enrichment data.
func Export(source string, employees []employee.Employee, format Format) (*File, error) {
	base := fmt.Sprintf("empleados_%s_%s",
		strings.ReplaceAll(source, ":", "-"),
		time.Now().Format("20060102-150405"),
	)
	columns := exportColumns
	if anyEnriched(employees) {
		columns = append(append([]column{}, exportColumns...), enrichmentColumns...)
	}

	switch format {
	case FormatJSON:
		data, err := json.MarshalIndent(employees, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode JSON export: %w", err)
		}
		return &File{
			Name:        base + ".json",
			ContentType: "application/json; charset=utf-8",
			Data:        data,
		}, nil

	case FormatCSV:
		var buf bytes.Buffer
		writer := csv.NewWriter(&buf)
		_ = writer.Write(headerRow(columns))
		for _, emp := range employees {
			_ = writer.Write(valueRow(columns, emp))
		}
		writer.Flush()
		if err := writer.Error(); err != nil {
			return nil, fmt.Errorf("encode CSV export: %w", err)
		}
		return &File{
			Name:        base + ".csv",
			ContentType: "text/csv; charset=utf-8",
			Data:        buf.Bytes(),
		}, nil

	case FormatExcel:
		workbook := excelize.NewFile()
		defer workbook.Close()
		const sheet = "Empleados"
		if err := workbook.SetSheetName(workbook.GetSheetName(0), sheet); err != nil {
			return nil, fmt.Errorf("prepare worksheet: %w", err)
		}
		if err := writeSheetRow(workbook, sheet, 1, headerRow(columns)); err != nil {
			return nil, err
		}
		for i, emp := range employees {
			if err := writeSheetRow(workbook, sheet, i+2, valueRow(columns, emp)); err != nil {
				return nil, err
			}
		}
		var buf bytes.Buffer
		if err := workbook.Write(&buf); err != nil {
			return nil, fmt.Errorf("encode Excel export: %w", err)
		}
		return &File{
			Name:        base + ".xlsx",
			ContentType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
			Data:        buf.Bytes(),
		}, nil
	}

	return nil, dErrors.New(dErrors.CodeBadRequest, "unsupported export format")
}

func writeSheetRow(workbook *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("address row %d: %w", row, err)
	}
	cells := make([]any, len(values))
	for i, value := range values {
		cells[i] = value
	}
	if err := workbook.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}

func headerRow(columns []column) []string {
	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = col.header
	}
	return headers
}

func valueRow(columns []column, emp employee.Employee) []string {
	values := make([]string, len(columns))
	for i, col := range columns {
		values[i] = exportValue(emp, col.key)
	}
	return values
}

// exportValue renders one cell. Biometrics serialize as JSON text so the
// cell stays machine-readable and survives a round trip through import.
func exportValue(emp employee.Employee, key string) string {
	switch key {
	case "uid":
		return emp.UID
	case "name":
		return emp.Name
	case "user_id":
		return emp.UserID
	case "card":
		return emp.Card
	case "privilege":
		return emp.Privilege
	case "group_id":
		return emp.GroupID
	case "biometrics":
		if len(emp.Biometrics) == 0 {
			return "[]"
		}
		data, err := json.Marshal(emp.Biometrics)
		if err != nil {
			return "[]"
		}
		return string(data)
	case "dni":
		return emp.DNI
	case "contract_from":
		return emp.ContractFrom
	case "medical_leave_from":
		return emp.MedicalLeaveFrom
	case "vacation_status":
		return emp.VacationStatus
	case "last_seen":
		return emp.LastSeen
	}
	return ""
}

func anyEnriched(employees []employee.Employee) bool {
	for _, emp := range employees {
		if emp.DNI != "" || emp.ContractFrom != "" || emp.MedicalLeaveFrom != "" ||
			emp.VacationStatus != "" || emp.LastSeen != "" {
			return true
		}
	}
	return false
}
