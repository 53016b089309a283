package utils

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// Table is a tabular export: one header row followed by data rows.
type Table struct {
	Sheet   string
	Headers []string
	Rows    [][]interface{}
}

// SummaryItem is one label/value line of the Summary sheet.
type SummaryItem struct {
	Label string
	Value interface{}
}

// ChartSeries is an optional column chart drawn on the Summary sheet.
type ChartSeries struct {
	Title  string
	Labels []string
	Values []int64
}

const summarySheet = "Summary"

// CreateReportWorkbook writes table to a new workbook with a Summary sheet in front.
func CreateReportWorkbook(path string, table Table, summary []SummaryItem, chart *ChartSeries) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(table.Sheet); err != nil {
		return err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return err
	}

	if err := writeTable(f, table, headerStyle); err != nil {
		return err
	}
	if err := writeSummary(f, summary, chart, headerStyle); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.SaveAs(path)
}

func writeTable(f *excelize.File, table Table, headerStyle int) error {
	headers := make([]interface{}, len(table.Headers))
	for i, h := range table.Headers {
		headers[i] = h
	}
	if err := f.SetSheetRow(table.Sheet, "A1", &headers); err != nil {
		return err
	}

	last, _ := excelize.CoordinatesToCellName(len(table.Headers), 1)
	if err := f.SetCellStyle(table.Sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range table.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := row
		if err := f.SetSheetRow(table.Sheet, cell, &row); err != nil {
			return err
		}
	}

	for i := 1; i <= len(table.Headers); i++ {
		col, _ := excelize.ColumnNumberToName(i)
		if err := f.SetColWidth(table.Sheet, col, col, 24); err != nil {
			return err
		}
	}

	return f.SetPanes(table.Sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

func writeSummary(f *excelize.File, summary []SummaryItem, chart *ChartSeries, headerStyle int) error {
	for i, item := range summary {
		row := i + 1
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("A%d", row), item.Label); err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("B%d", row), item.Value); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(summarySheet, "A", "A", 32); err != nil {
		return err
	}
	if err := f.SetColWidth(summarySheet, "B", "B", 20); err != nil {
		return err
	}

	if chart == nil || len(chart.Labels) == 0 {
		return nil
	}

	// chart data lives in columns D:E below a small header
	if err := f.SetCellValue(summarySheet, "D1", chart.Title); err != nil {
		return err
	}
	if err := f.SetCellValue(summarySheet, "E1", "Count"); err != nil {
		return err
	}
	if err := f.SetCellStyle(summarySheet, "D1", "E1", headerStyle); err != nil {
		return err
	}
	for i, label := range chart.Labels {
		row := i + 2
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("D%d", row), label); err != nil {
			return err
		}
		if err := f.SetCellValue(summarySheet, fmt.Sprintf("E%d", row), chart.Values[i]); err != nil {
			return err
		}
	}

	lastRow := len(chart.Labels) + 1
	return f.AddChart(summarySheet, "G2", &excelize.Chart{
		Type: excelize.Col,
		Series: []excelize.ChartSeries{
			{
				Name:       chart.Title,
				Categories: fmt.Sprintf("%s!$D$2:$D$%d", summarySheet, lastRow),
				Values:     fmt.Sprintf("%s!$E$2:$E$%d", summarySheet, lastRow),
			},
		},
		Title: []excelize.RichTextRun{
			{Text: chart.Title},
		},
		YAxis: excelize.ChartAxis{
			MajorGridLines: true,
		},
		Dimension: excelize.ChartDimension{
			Width:  600,
			Height: 360,
		},
	})
}
