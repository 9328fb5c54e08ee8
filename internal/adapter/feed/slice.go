package feed

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/couchcryptid/visitor-density/internal/domain"
)

// SliceByDate returns the header of raw plus the rows whose timestamp,
// read in dataLoc, falls on day's calendar date in viewLoc. The input
// delimiter is kept. Rows with an unreadable timestamp are dropped.
func SliceByDate(raw []byte, day time.Time, dataLoc, viewLoc *time.Location) ([]byte, int, error) {
	if dataLoc == nil {
		dataLoc = time.Local
	}
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, 0, &domain.FormatError{Reason: "empty input"}
	}

	delim := domain.DetectDelimiter(raw)
	r := domain.NewTableReader(bytes.NewReader(raw), delim)

	header, err := r.Read()
	if err != nil {
		return nil, 0, &domain.FormatError{Reason: "read header", Err: err}
	}
	tsCol, ok := domain.IndexHeader(header)[domain.ColTimestamp]
	if !ok {
		return nil, 0, &domain.FormatError{Reason: "header has no timestamp column"}
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = delim
	if err := w.Write(header); err != nil {
		return nil, 0, fmt.Errorf("write header: %w", err)
	}

	kept := 0
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, &domain.FormatError{Reason: "read rows", Err: err}
		}
		if tsCol >= len(rec) {
			continue
		}
		ts, err := domain.ParseTimestamp(rec[tsCol], dataLoc)
		if err != nil || !domain.SameDay(ts, day, viewLoc) {
			continue
		}
		if err := w.Write(rec); err != nil {
			return nil, 0, fmt.Errorf("write row: %w", err)
		}
		kept++
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, 0, fmt.Errorf("flush table: %w", err)
	}
	return buf.Bytes(), kept, nil
}
