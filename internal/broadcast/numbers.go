package broadcast

import (
	"encoding/csv"
	"io"
	"regexp"
	"strings"
)

// numberPattern accepts international phone numbers: optional leading +,
// no leading zero, 7 to 15 digits.
var numberPattern = regexp.MustCompile(`^\+?[1-9]\d{6,14}$`)

// ValidNumber reports whether s looks like a sendable phone number.
func ValidNumber(s string) bool {
	return numberPattern.MatchString(strings.TrimSpace(s))
}

// ParseNumbers extracts valid phone numbers from the first column of a CSV
// stream, dropping anything that fails validation. Rows with the wrong
// field count are tolerated: uploads come from spreadsheets of varying
// shapes.
func ParseNumbers(r io.Reader) ([]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var numbers []string
	seen := map[string]struct{}{}
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) == 0 {
			continue
		}
		n := strings.TrimSpace(rec[0])
		if !ValidNumber(n) {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

// SplitNumbers parses a comma-separated list, dropping blanks and
// invalid entries.
func SplitNumbers(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		n := strings.TrimSpace(part)
		if n == "" || !ValidNumber(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}
