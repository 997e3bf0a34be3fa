package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"
)

// CSVParser handles CSV files: rows are grouped into batches of 20,
// each batch a chapter with one block per row.
type CSVParser struct{}

const csvBatchSize = 20

func (p *CSVParser) Parse(r io.Reader, filename string) (*Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	b := newBuilder()
	doc := &Document{Title: titleFromFilename(filename, ".csv")}
	if len(records) == 0 {
		doc.Root = b.done()
		return doc, nil
	}

	headers := records[0]
	dataRows := records[1:]

	for i := 0; i < len(dataRows); i += csvBatchSize {
		end := i + csvBatchSize
		if end > len(dataRows) {
			end = len(dataRows)
		}
		// 1-indexed row labels, skipping the header row.
		b.section(fmt.Sprintf("Rows %d-%d", i+2, end+1), 0)
		for _, row := range dataRows[i:end] {
			b.block("p", rowText(headers, row))
		}
	}

	doc.Root = b.done()
	return doc, nil
}

func rowText(headers, row []string) string {
	var parts []string
	for j, cell := range row {
		if j < len(headers) {
			parts = append(parts, headers[j]+": "+cell)
		} else {
			parts = append(parts, cell)
		}
	}
	return strings.Join(parts, ", ")
}
