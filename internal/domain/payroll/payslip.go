package payroll

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jung-kurt/gofpdf"

	cryptoutil "timeledger/internal/platform/crypto"
)

// RenderPayslip draws a one-page payslip for a paid entry.
func RenderPayslip(period Period, entry Entry) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Payslip")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	name := entry.UserName
	if name == "" {
		name = entry.UserID
	}
	pdf.Cell(0, 8, fmt.Sprintf("Employee: %s", name))
	pdf.Ln(7)
	if entry.UserEmail != "" {
		pdf.Cell(0, 8, fmt.Sprintf("Email: %s", entry.UserEmail))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Period: %s (%s to %s)", period.Name, period.StartDate.Format("2006-01-02"), period.EndDate.Format("2006-01-02")))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Rate type: %s", strings.ReplaceAll(entry.RateType, "_", " ")))
	pdf.Ln(10)

	if entry.RegularHours.Valid {
		pdf.Cell(0, 8, fmt.Sprintf("Regular: %s h x %s", entry.RegularHours.Decimal.StringFixed(2), entry.RegularRate.StringFixed(2)))
		pdf.Ln(7)
	}
	if entry.OvertimeHours.Valid && entry.OvertimeHours.Decimal.IsPositive() {
		pdf.Cell(0, 8, fmt.Sprintf("Overtime: %s h x %s", entry.OvertimeHours.Decimal.StringFixed(2), entry.OvertimeRate.StringFixed(2)))
		pdf.Ln(7)
	}
	pdf.Cell(0, 8, fmt.Sprintf("Gross: %s %s", entry.GrossAmount.StringFixed(2), entry.Currency))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Adjustments: %s %s", entry.AdjustmentsAmount.StringFixed(2), entry.Currency))
	pdf.Ln(7)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Net: %s %s", entry.NetAmount.StringFixed(2), entry.Currency))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// FilePayslips keeps payslip PDFs on disk, encrypted when a key is configured.
type FilePayslips struct {
	Dir    string
	Crypto *cryptoutil.Service
}

func NewFilePayslips(dir string, crypto *cryptoutil.Service) *FilePayslips {
	return &FilePayslips{Dir: dir, Crypto: crypto}
}

func (f *FilePayslips) Save(_ context.Context, name string, pdf []byte) (string, error) {
	if err := os.MkdirAll(f.Dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(f.Dir, filepath.Base(name)+".pdf")
	data := pdf
	if f.Crypto != nil && f.Crypto.Configured() {
		encrypted, err := f.Crypto.Encrypt(pdf, []byte(filepath.Base(path)))
		if err != nil {
			return "", err
		}
		data = encrypted
		path += ".enc"
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

func (f *FilePayslips) Load(_ context.Context, path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrPayslipNotFound
		}
		return nil, err
	}
	if strings.HasSuffix(path, ".enc") {
		if f.Crypto == nil || !f.Crypto.Configured() {
			return nil, fmt.Errorf("payslip is encrypted but no key is configured")
		}
		return f.Crypto.Decrypt(data, []byte(strings.TrimSuffix(filepath.Base(path), ".enc")))
	}
	return data, nil
}
