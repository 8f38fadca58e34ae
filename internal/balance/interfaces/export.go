package interfaces

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	balance "gridbalance/internal/balance/domain"
)

// BuildBalancePDF renders a balance range report as PDF, one row per record.
func BuildBalancePDF(g balance.Granularity, start, end time.Time, records []*balance.BalanceRecord) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Grid Balance Report")
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Granularity: %s", g))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Range: %s .. %s", start.Format(time.RFC3339), end.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Records: %d", len(records)))
	pdf.Ln(8)

	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(45, 6, "Timestamp", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Generation (MW)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Demand (MW)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(35, 6, "Balance (MW)", "1", 0, "C", false, 0, "")
	pdf.CellFormat(30, 6, "Renewable %", "1", 0, "C", false, 0, "")
	pdf.Ln(-1)
	pdf.SetFont("Arial", "", 10)
	for _, record := range records {
		pdf.CellFormat(45, 6, record.Timestamp.Format("2006-01-02 15:04"), "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", record.TotalGeneration()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", record.TotalDemand()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.1f", record.Balance()), "1", 0, "R", false, 0, "")
		pdf.CellFormat(30, 6, fmt.Sprintf("%.1f", record.RenewableShare()), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildBalanceXLSX renders a balance range report as XLSX with a summary
// sheet and a per-record sheet.
func BuildBalanceXLSX(g balance.Granularity, start, end time.Time, records []*balance.BalanceRecord) ([]byte, error) {
	f := excelize.NewFile()
	summarySheet := "summary"
	recordsSheet := "records"
	f.SetSheetName("Sheet1", summarySheet)
	f.NewSheet(recordsSheet)

	_ = f.SetCellValue(summarySheet, "A1", "Grid Balance Report")
	_ = f.SetCellValue(summarySheet, "A3", "Granularity")
	_ = f.SetCellValue(summarySheet, "B3", string(g))
	_ = f.SetCellValue(summarySheet, "A4", "Range Start")
	_ = f.SetCellValue(summarySheet, "B4", start.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A5", "Range End")
	_ = f.SetCellValue(summarySheet, "B5", end.Format(time.RFC3339))
	_ = f.SetCellValue(summarySheet, "A6", "Records")
	_ = f.SetCellValue(summarySheet, "B6", len(records))

	_ = f.SetCellValue(recordsSheet, "A1", "Timestamp")
	_ = f.SetCellValue(recordsSheet, "B1", "Generation (MW)")
	_ = f.SetCellValue(recordsSheet, "C1", "Demand (MW)")
	_ = f.SetCellValue(recordsSheet, "D1", "Balance (MW)")
	_ = f.SetCellValue(recordsSheet, "E1", "Renewable Share (%)")
	for i, record := range records {
		row := i + 2
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("A%d", row), record.Timestamp.Format("2006-01-02 15:04"))
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("B%d", row), record.TotalGeneration())
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("C%d", row), record.TotalDemand())
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("D%d", row), record.Balance())
		_ = f.SetCellValue(recordsSheet, fmt.Sprintf("E%d", row), record.RenewableShare())
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
