package reports

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"timeledger/internal/platform/apperr"
)

const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatPDF  = "pdf"

	payablesSheet = "Payables"
	summarySheet  = "Summary"
	dateLayout    = "2006-01-02"
)

var Formats = []string{FormatCSV, FormatXLSX, FormatPDF}

var ErrUnknownFormat = apperr.Validation("payload validation failed",
	apperr.FieldIssue{Field: "format", Reason: "must be one of csv, xlsx, pdf"})

var csvHeader = []string{
	"entry_id", "period_id", "period_name", "period_type", "period_status", "start_date", "end_date",
	"user_id", "employee_name", "email", "rate_type", "currency",
	"regular_hours", "overtime_hours", "regular_rate", "overtime_rate",
	"gross_amount", "adjustments_amount", "net_amount", "entry_status",
}

func ParseFormat(value string) (string, error) {
	format := strings.ToLower(strings.TrimSpace(value))
	if format == "" {
		return FormatCSV, nil
	}
	for _, f := range Formats {
		if f == format {
			return format, nil
		}
	}
	return "", ErrUnknownFormat
}

func ContentType(format string) string {
	switch format {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv"
	}
}

func Filename(format string, at time.Time) string {
	return fmt.Sprintf("payables-%s.%s", at.Format("20060102"), format)
}

// Write renders the report in the requested format.
func Write(w io.Writer, format string, report Report) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, report.Entries)
	case FormatXLSX:
		return WriteXLSX(w, report)
	case FormatPDF:
		return WritePDF(w, report)
	default:
		return ErrUnknownFormat
	}
}

func nullString(value decimal.NullDecimal) string {
	if !value.Valid {
		return ""
	}
	return value.Decimal.StringFixed(2)
}

func rowRecord(row Row) []string {
	return []string{
		row.EntryID, row.PeriodID, row.PeriodName, row.PeriodType, row.PeriodStatus,
		row.StartDate.Format(dateLayout), row.EndDate.Format(dateLayout),
		row.UserID, row.UserName, row.UserEmail, row.RateType, row.Currency,
		nullString(row.RegularHours), nullString(row.OvertimeHours),
		row.RegularRate.StringFixed(4), row.OvertimeRate.StringFixed(4),
		row.GrossAmount.StringFixed(2), row.AdjustmentsAmount.StringFixed(2), row.NetAmount.StringFixed(2),
		row.EntryStatus,
	}
}

func WriteCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write(rowRecord(row)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// ReadCSV parses a file produced by WriteCSV back into rows.
func ReadCSV(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(csvHeader)
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	for i, name := range csvHeader {
		if header[i] != name {
			return nil, fmt.Errorf("unexpected csv column %d: %q", i+1, header[i])
		}
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, err
		}
		row, err := parseRecord(record)
		if err != nil {
			return nil, fmt.Errorf("csv line %d: %w", len(rows)+2, err)
		}
		rows = append(rows, row)
	}
}

func parseRecord(record []string) (Row, error) {
	row := Row{
		EntryID: record[0], PeriodID: record[1], PeriodName: record[2], PeriodType: record[3], PeriodStatus: record[4],
		UserID: record[7], UserName: record[8], UserEmail: record[9], RateType: record[10], Currency: record[11],
		EntryStatus: record[19],
	}
	var err error
	if row.StartDate, err = time.Parse(dateLayout, record[5]); err != nil {
		return Row{}, err
	}
	if row.EndDate, err = time.Parse(dateLayout, record[6]); err != nil {
		return Row{}, err
	}
	if row.RegularHours, err = parseNull(record[12]); err != nil {
		return Row{}, err
	}
	if row.OvertimeHours, err = parseNull(record[13]); err != nil {
		return Row{}, err
	}
	amounts := []*decimal.Decimal{&row.RegularRate, &row.OvertimeRate, &row.GrossAmount, &row.AdjustmentsAmount, &row.NetAmount}
	for i, target := range amounts {
		value, err := decimal.NewFromString(record[14+i])
		if err != nil {
			return Row{}, fmt.Errorf("column %s: %w", csvHeader[14+i], err)
		}
		*target = value
	}
	return row, nil
}

func parseNull(value string) (decimal.NullDecimal, error) {
	if value == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}

func cellName(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func WriteXLSX(w io.Writer, report Report) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", payablesSheet); err != nil {
		return err
	}
	header := make([]any, len(csvHeader))
	for i, name := range csvHeader {
		header[i] = name
	}
	if err := f.SetSheetRow(payablesSheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(payablesSheet, 1, 1, bold); err != nil {
		return err
	}

	for i, row := range report.Entries {
		record := rowRecord(row)
		values := make([]any, len(record))
		for j, v := range record {
			values[j] = v
		}
		for j := 12; j <= 18; j++ {
			if d, err := decimal.NewFromString(record[j]); err == nil {
				values[j] = d.InexactFloat64()
			}
		}
		if err := f.SetSheetRow(payablesSheet, cellName(1, i+2), &values); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(summarySheet); err != nil {
		return err
	}
	sum := report.Summary
	lines := [][]any{
		{"entries", sum.EntriesCount},
		{"total_employees", sum.TotalEmployees},
		{"total_regular_hours", sum.TotalRegularHours.InexactFloat64()},
		{"total_overtime_hours", sum.TotalOvertimeHours.InexactFloat64()},
		{"total_gross_amount", sum.TotalGrossAmount.InexactFloat64()},
		{"total_adjustments", sum.TotalAdjustments.InexactFloat64()},
		{"total_net_amount", sum.TotalNetAmount.InexactFloat64()},
	}
	for i, line := range lines {
		if err := f.SetSheetRow(summarySheet, cellName(1, i+1), &line); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func WritePDF(w io.Writer, report Report) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, "Payables report")
	pdf.Ln(12)

	columns := []struct {
		title string
		width float64
	}{
		{"Period", 60}, {"Employee", 55}, {"Rate", 25}, {"Reg h", 20}, {"OT h", 20},
		{"Gross", 28}, {"Adj.", 24}, {"Net", 28}, {"Status", 17},
	}
	pdf.SetFont("Helvetica", "B", 9)
	for _, c := range columns {
		pdf.CellFormat(c.width, 7, c.title, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	for _, row := range report.Entries {
		name := row.UserName
		if name == "" {
			name = row.UserEmail
		}
		cells := []string{
			row.PeriodName, name, row.RateType,
			nullString(row.RegularHours), nullString(row.OvertimeHours),
			row.GrossAmount.StringFixed(2), row.AdjustmentsAmount.StringFixed(2), row.NetAmount.StringFixed(2),
			row.EntryStatus,
		}
		for i, c := range columns {
			align := "L"
			if i >= 3 && i <= 7 {
				align = "R"
			}
			pdf.CellFormat(c.width, 6, cells[i], "1", 0, align, false, 0, "")
		}
		pdf.Ln(-1)
	}

	sum := report.Summary
	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.Cell(0, 7, fmt.Sprintf("Employees: %d   Regular hours: %s   Overtime hours: %s",
		sum.TotalEmployees, sum.TotalRegularHours.StringFixed(2), sum.TotalOvertimeHours.StringFixed(2)))
	pdf.Ln(6)
	pdf.Cell(0, 7, fmt.Sprintf("Gross: %s   Adjustments: %s   Net: %s",
		sum.TotalGrossAmount.StringFixed(2), sum.TotalAdjustments.StringFixed(2), sum.TotalNetAmount.StringFixed(2)))

	return pdf.Output(w)
}
