package report

import (
	"bytes"
	"encoding/csv"
	"fmt"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

const separator = ';'

var header = []string{"Arquivo", "cStat", "Motivo"}

// Record is one rejected document.
type Record struct {
	FileName   string
	ReasonCode string
	ReasonText string
}

// Builder collects rejections in the order documents were encountered.
type Builder struct {
	records []Record
}

// Record appends a rejection.
func (b *Builder) Record(fileName, reasonCode, reasonText string) {
	b.records = append(b.records, Record{FileName: fileName, ReasonCode: reasonCode, ReasonText: reasonText})
}

// Len returns the number of recorded rejections.
func (b *Builder) Len() int { return len(b.records) }

// Render produces the report as UTF-8 with a byte-order mark, so spreadsheet
// tools pick the right encoding. ok is false when nothing was recorded, in
// which case no report should be written at all.
func (b *Builder) Render() (data []byte, ok bool, err error) {
	if len(b.records) == 0 {
		return nil, false, nil
	}

	var buf bytes.Buffer
	encoded := transform.NewWriter(&buf, unicode.UTF8BOM.NewEncoder())

	w := csv.NewWriter(encoded)
	w.Comma = separator
	if err := w.Write(header); err != nil {
		return nil, false, fmt.Errorf("write header: %w", err)
	}
	for _, r := range b.records {
		if err := w.Write([]string{r.FileName, r.ReasonCode, r.ReasonText}); err != nil {
			return nil, false, fmt.Errorf("write row %s: %w", r.FileName, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, false, fmt.Errorf("flush csv: %w", err)
	}
	if err := encoded.Close(); err != nil {
		return nil, false, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), true, nil
}
