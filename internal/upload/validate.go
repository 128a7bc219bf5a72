package upload

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/yungbote/threadchat-backend/internal/platform/apierr"
)

type Policy string

const (
	PolicyStrict  Policy = "strict"
	PolicyLenient Policy = "lenient"
)

func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PolicyStrict:
		return PolicyStrict, nil
	case PolicyLenient:
		return PolicyLenient, nil
	default:
		return "", fmt.Errorf("unknown upload validation policy %q", s)
	}
}

const (
	DtypeInt64   = "int64"
	DtypeFloat64 = "float64"
	DtypeObject  = "object"
)

const headRows = 5

const (
	msgEmpty        = "Data validation error: The file appears to be empty or incorrectly formatted."
	msgNonNumeric   = "Data validation error: All count columns must be numeric."
	msgNumericIndex = "Data validation error: The first column (gene IDs) should not be numeric."
	msgBadEncoding  = "Invalid file encoding. Only UTF-8 is supported."
	msgNoDelimiter  = "Could not determine the delimiter. Please use a comma or tab-separated file."
	msgBadExtension = "Invalid file type. Please upload a .csv, .tsv, .txt or .tab file."
	msgTooLarge     = "File is too large."
)

// Head is the first rows of the sample in split orientation.
type Head struct {
	Index   []any    `json:"index"`
	Columns []string `json:"columns"`
	Data    [][]any  `json:"data"`
}

type Metadata struct {
	Filename  string            `json:"filename"`
	Format    string            `json:"format"`
	Shape     [2]int            `json:"shape"`
	Columns   []string          `json:"columns"`
	IndexName *string           `json:"index_name"`
	Dtypes    map[string]string `json:"dtypes"`
	Head      Head              `json:"head"`
}

// Validate infers column types and applies the policy checks. Filename and
// Format are left for the caller.
func Validate(t *Table, policy Policy) (*Metadata, error) {
	if t == nil || len(t.Rows) == 0 || len(t.Columns) == 0 {
		return nil, apierr.ContentValidation("%s", msgEmpty)
	}

	dtypes := make(map[string]string, len(t.Columns))
	colTypes := make([]string, len(t.Columns))
	numeric := true
	for j, name := range t.Columns {
		dt := inferDtype(column(t.Rows, j))
		colTypes[j] = dt
		dtypes[name] = dt
		if dt == DtypeObject {
			numeric = false
		}
	}
	indexType := inferDtype(t.Index)

	if policy != PolicyLenient {
		if !numeric {
			return nil, apierr.ContentValidation("%s", msgNonNumeric)
		}
		if indexType != DtypeObject {
			return nil, apierr.ContentValidation("%s", msgNumericIndex)
		}
	}

	var indexName *string
	if t.IndexName != "" {
		name := t.IndexName
		indexName = &name
	}

	return &Metadata{
		Shape:     [2]int{len(t.Rows), len(t.Columns)},
		Columns:   append([]string(nil), t.Columns...),
		IndexName: indexName,
		Dtypes:    dtypes,
		Head:      buildHead(t, indexType, colTypes),
	}, nil
}

func column(rows [][]string, j int) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r[j]
	}
	return out
}

// inferDtype uses the dataframe vocabulary: all integers → int64, any float
// or blank among numbers → float64, anything else → object.
func inferDtype(cells []string) string {
	dt := DtypeInt64
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			dt = DtypeFloat64
			continue
		}
		if _, err := strconv.ParseInt(c, 10, 64); err == nil {
			continue
		}
		if _, err := strconv.ParseFloat(c, 64); err == nil {
			dt = DtypeFloat64
			continue
		}
		return DtypeObject
	}
	return dt
}

func buildHead(t *Table, indexType string, colTypes []string) Head {
	n := min(headRows, len(t.Rows))
	h := Head{
		Index:   make([]any, n),
		Columns: append([]string(nil), t.Columns...),
		Data:    make([][]any, n),
	}
	for i := 0; i < n; i++ {
		h.Index[i] = typedCell(t.Index[i], indexType)
		row := make([]any, len(colTypes))
		for j, dt := range colTypes {
			row[j] = typedCell(t.Rows[i][j], dt)
		}
		h.Data[i] = row
	}
	return h
}

// typedCell renders a cell for JSON. Missing and non-finite numbers are null.
func typedCell(s, dtype string) any {
	s = strings.TrimSpace(s)
	switch dtype {
	case DtypeInt64:
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	case DtypeFloat64:
		if s == "" {
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		return v
	default:
		if s == "" {
			return nil
		}
		return s
	}
}
