package form

import (
	"strings"
)

// Submission maps form field name to its value
type Submission map[string]string

var newlineReplacer = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// NormalizeValue replaces each CRLF, CR and LF with a single space
// so that a value never spans more than one line
func NormalizeValue(s string) string {
	return newlineReplacer.Replace(s)
}

// BuildRecord returns values for all columns, in column order
// (form-sourced columns come first). A form column missing in sub
// is an empty string
func BuildRecord(cols *Columns, sub Submission, ctx *AutoContext) []string {
	res := make([]string, len(cols.cols))
	for i, col := range cols.cols {
		var v string
		if col.Source == SourceForm {
			v = sub[col.Name]
		} else {
			v = col.gen(ctx)
		}
		res[i] = NormalizeValue(v)
	}
	return res
}
