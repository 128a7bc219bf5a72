package upload

import "strings"

var sniffCandidates = []rune{',', '\t'}

// DetectDelimiter picks ',' or '\t' for a text sample. A candidate qualifies
// when every complete, non-empty line splits into the same number (>= 2) of
// fields. When both qualify the wider split wins and a tie goes to ','.
// If neither qualifies it falls back to whichever character is present,
// tab first.
func DetectDelimiter(sample string) (rune, bool) {
	lines := completeLines(sample)

	var (
		best       rune
		bestFields int
	)
	for _, d := range sniffCandidates {
		n, ok := consistentFields(lines, d)
		if ok && n > bestFields {
			best, bestFields = d, n
		}
	}
	if bestFields > 0 {
		return best, true
	}

	switch {
	case strings.ContainsRune(sample, '\t'):
		return '\t', true
	case strings.ContainsRune(sample, ','):
		return ',', true
	default:
		return 0, false
	}
}

// FormatFor names the table format for a delimiter.
func FormatFor(delim rune) string {
	if delim == '\t' {
		return "tsv"
	}
	return "csv"
}

// completeLines drops blank lines and, when the sample does not end on a
// newline and holds more than one line, the trailing partial line.
func completeLines(sample string) []string {
	sample = strings.ReplaceAll(sample, "\r\n", "\n")
	raw := strings.Split(sample, "\n")
	if !strings.HasSuffix(sample, "\n") && len(raw) > 1 {
		raw = raw[:len(raw)-1]
	}
	out := make([]string, 0, len(raw))
	for _, l := range raw {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

func consistentFields(lines []string, delim rune) (int, bool) {
	if len(lines) == 0 {
		return 0, false
	}
	want := countFields(lines[0], delim)
	if want < 2 {
		return 0, false
	}
	for _, l := range lines[1:] {
		if countFields(l, delim) != want {
			return 0, false
		}
	}
	return want, true
}

// countFields counts delimiter-separated fields, ignoring delimiters inside
// double quotes.
func countFields(line string, delim rune) int {
	n := 1
	inQuotes := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == delim && !inQuotes:
			n++
		}
	}
	return n
}
