package revenue

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	_, err := s.buf.WriteString(line)
	return err
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

// moneyFormatter renders amounts with locale aware grouping for CSV export.
type moneyFormatter struct {
	printer  *message.Printer
	currency string
}

func newMoneyFormatter(currency string) moneyFormatter {
	tag := language.English
	if currency == "TRY" {
		tag = language.Turkish
	}
	return moneyFormatter{printer: message.NewPrinter(tag), currency: currency}
}

func (f moneyFormatter) format(amount float64) string {
	return f.printer.Sprintf("%.2f", amount)
}

// WriteCSV streams the report as CSV. The header comment carries the month
// and a degradation note so spreadsheet consumers see partial data upfront.
func WriteCSV(w io.Writer, report *Report) error {
	s := newCSVStreamer(w)
	money := newMoneyFormatter(report.Currency)

	if err := s.writeComment(fmt.Sprintf("# revenue report %s (%s)", report.Month, report.Currency)); err != nil {
		return err
	}
	if report.Degraded {
		if err := s.writeComment("# DEGRADED: " + report.DegradedCause); err != nil {
			return err
		}
	}
	header := []string{"source", "id", "date", "customer", "branch", "operator", "status",
		"invoiced", "service_revenue", "material_revenue", "total"}
	if err := s.writeRow(header); err != nil {
		return err
	}
	for _, row := range report.Rows {
		operator := ""
		if row.OperatorName != nil {
			operator = *row.OperatorName
		}
		record := []string{
			string(row.Source),
			strconv.FormatInt(row.ID, 10),
			row.Date.Format("2006-01-02"),
			row.CustomerName,
			row.BranchName,
			operator,
			string(row.Status),
			strconv.FormatBool(row.IsInvoiced),
			money.format(row.Revenue.ServiceRevenue),
			money.format(row.Revenue.MaterialRevenue),
			money.format(row.Revenue.Total),
		}
		if err := s.writeRow(record); err != nil {
			return err
		}
	}
	totals := []string{"total", "", "", "", "", "", "", "",
		money.format(report.ServiceRevenue),
		money.format(report.MaterialRevenue),
		money.format(report.Total)}
	if err := s.writeRow(totals); err != nil {
		return err
	}
	return s.Flush()
}
