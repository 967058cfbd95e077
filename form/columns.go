package form

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kjk/csvform/httputil"
)

// Source tells where the value of a column comes from
type Source int

const (
	SourceForm Source = iota
	SourceAuto
)

func (s Source) String() string {
	switch s {
	case SourceForm:
		return "form"
	case SourceAuto:
		return "auto"
	}
	return fmt.Sprintf("Source(%d)", int(s))
}

// TimestampFormat is YYYY-MM-DD HH:MM:SS
const TimestampFormat = "2006-01-02 15:04:05"

// AutoContext is what generators can use to compute a value
type AutoContext struct {
	Now time.Time
	// optional, nil when not processing an HTTP request
	Request *http.Request
}

// Generator computes value of an auto-generated column
type Generator func(ctx *AutoContext) string

func genTimestamp(ctx *AutoContext) string {
	return ctx.Now.Format(TimestampFormat)
}

func genTimestampUTC(ctx *AutoContext) string {
	return ctx.Now.UTC().Format(TimestampFormat)
}

func genRemoteIP(ctx *AutoContext) string {
	if ctx.Request == nil {
		return ""
	}
	return httputil.GetBestRemoteAddress(ctx.Request)
}

func genUserAgent(ctx *AutoContext) string {
	if ctx.Request == nil {
		return ""
	}
	return ctx.Request.UserAgent()
}

var generators = map[string]Generator{
	"timestamp":     genTimestamp,
	"timestamp_utc": genTimestampUTC,
	"remote_ip":     genRemoteIP,
	"user_agent":    genUserAgent,
}

// GeneratorNames returns names accepted in AutoColumn.Generator
func GeneratorNames() []string {
	return []string{"timestamp", "timestamp_utc", "remote_ip", "user_agent"}
}

// AutoColumn is an auto-generated column.
// If Generator is empty, Name is used as generator name
type AutoColumn struct {
	Name      string
	Generator string
}

// ParseAutoColumn parses "name" or "name:generator"
func ParseAutoColumn(s string) AutoColumn {
	name, gen, _ := strings.Cut(strings.TrimSpace(s), ":")
	return AutoColumn{
		Name:      strings.TrimSpace(name),
		Generator: strings.TrimSpace(gen),
	}
}

// Column is a single column of a record
type Column struct {
	Name   string
	Source Source

	gen Generator
}

// Columns is an ordered list of columns, form-sourced first.
// It can't be changed after creation
type Columns struct {
	cols []Column
}

// NewColumns validates the column configuration
func NewColumns(formNames []string, auto []AutoColumn) (*Columns, error) {
	seen := map[string]bool{}
	checkName := func(name string) error {
		if name == "" {
			return fmt.Errorf("column name is empty")
		}
		if strings.ContainsAny(name, "\r\n") {
			return fmt.Errorf("column name '%s' contains newline", name)
		}
		if seen[name] {
			return fmt.Errorf("duplicate column '%s'", name)
		}
		seen[name] = true
		return nil
	}

	res := &Columns{}
	for _, name := range formNames {
		if err := checkName(name); err != nil {
			return nil, err
		}
		res.cols = append(res.cols, Column{Name: name, Source: SourceForm})
	}
	for _, ac := range auto {
		if err := checkName(ac.Name); err != nil {
			return nil, err
		}
		genName := ac.Generator
		if genName == "" {
			genName = ac.Name
		}
		gen := generators[genName]
		if gen == nil {
			return nil, fmt.Errorf("unknown generator '%s' for column '%s', known generators: %s", genName, ac.Name, strings.Join(GeneratorNames(), ", "))
		}
		res.cols = append(res.cols, Column{Name: ac.Name, Source: SourceAuto, gen: gen})
	}
	if len(res.cols) == 0 {
		return nil, fmt.Errorf("no columns")
	}
	return res, nil
}

// Header returns column names in order
func (c *Columns) Header() []string {
	res := make([]string, len(c.cols))
	for i, col := range c.cols {
		res[i] = col.Name
	}
	return res
}

// All returns a copy of all columns
func (c *Columns) All() []Column {
	return append([]Column(nil), c.cols...)
}

// FormNames returns names of form-sourced columns
func (c *Columns) FormNames() []string {
	var res []string
	for _, col := range c.cols {
		if col.Source == SourceForm {
			res = append(res, col.Name)
		}
	}
	return res
}

func (c *Columns) Len() int {
	return len(c.cols)
}
