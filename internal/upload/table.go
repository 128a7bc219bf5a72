package upload

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
)

const DefaultSampleRows = 1000

// Table is a parsed sample: the first column is the row label (index), the
// remaining header cells name the data columns.
type Table struct {
	IndexName string
	Columns   []string
	Index     []string
	Rows      [][]string
	// Truncated is set when the input had more rows than were read.
	Truncated bool
}

// Parse reads the header and at most maxRows data rows. Short rows are
// padded with blanks; rows wider than the header are rejected.
func Parse(r io.Reader, delim rune, maxRows int) (*Table, error) {
	if maxRows <= 0 {
		maxRows = DefaultSampleRows
	}
	cr := csv.NewReader(r)
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &Table{}, nil
	}
	if err != nil {
		return nil, apierr.ContentValidation("Error processing file: %v", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	t := &Table{
		IndexName: strings.TrimSpace(header[0]),
		Columns:   mangleColumns(header[1:]),
	}
	width := len(header)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apierr.ContentValidation("Error processing file: %v", err)
		}
		if len(t.Rows) == maxRows {
			t.Truncated = true
			break
		}
		line, _ := cr.FieldPos(0)
		if len(rec) > width {
			return nil, apierr.ContentValidation("Error processing file: expected %d fields in line %d, saw %d", width, line, len(rec))
		}
		for len(rec) < width {
			rec = append(rec, "")
		}
		t.Index = append(t.Index, rec[0])
		t.Rows = append(t.Rows, rec[1:])
	}
	return t, nil
}

// mangleColumns fills blank names and suffixes duplicates the way common
// dataframe readers do: "Unnamed: i", then "name.1", "name.2".
func mangleColumns(cols []string) []string {
	out := make([]string, len(cols))
	used := make(map[string]bool, len(cols))
	for i, c := range cols {
		c = strings.TrimSpace(c)
		if c == "" {
			c = "Unnamed: " + strconv.Itoa(i+1)
		}
		name := c
		for n := 1; used[name]; n++ {
			name = fmt.Sprintf("%s.%d", c, n)
		}
		used[name] = true
		out[i] = name
	}
	return out
}
