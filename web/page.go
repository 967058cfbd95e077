package web

import (
	"bytes"
	"html/template"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
)

// fields rendered as <textarea>, they are optional
var textAreaFields = map[string]bool{
	"message":  true,
	"comment":  true,
	"comments": true,
	"notes":    true,
	"body":     true,
}

type field struct {
	Name     string
	Label    string
	Type     string
	TextArea bool
	Required bool
}

type pageData struct {
	Title    string
	Intro    template.HTML
	Fields   []field
	Message  string
	OK       bool
	HasData  bool
	FileURL  string
	FileName string
	Size     string
	Rows     int
}

// labelFromName turns "first_name" into "First name"
func labelFromName(name string) string {
	s := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func makeFields(names []string) []field {
	var res []field
	for _, name := range names {
		f := field{
			Name:  name,
			Label: labelFromName(name),
			Type:  "text",
		}
		if textAreaFields[strings.ToLower(name)] {
			f.TextArea = true
		} else {
			f.Required = true
		}
		if strings.EqualFold(name, "email") {
			f.Type = "email"
		}
		res = append(res, f)
	}
	return res
}

// renderIntro converts markdown to html
func renderIntro(md string) (template.HTML, error) {
	if strings.TrimSpace(md) == "" {
		return "", nil
	}
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

var tmplPage = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">

<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Title}}</title>
  <link rel="stylesheet" href="/static/style.css">
</head>

<body>
  <h1>{{.Title}}</h1>
  {{with .Intro}}<div class="intro">{{.}}</div>{{end}}

  {{if .Message}}
  <div class="message {{if .OK}}success{{else}}error{{end}}">{{.Message}}</div>
  {{end}}

  <h2>Form</h2>
  <form method="POST" action="/">
    {{range .Fields}}
    <div>
      <label for="{{.Name}}">{{.Label}}:</label>
      {{if .TextArea}}
      <textarea id="{{.Name}}" name="{{.Name}}" rows="4"{{if .Required}} required{{end}}></textarea>
      {{else}}
      <input type="{{.Type}}" id="{{.Name}}" name="{{.Name}}"{{if .Required}} required{{end}}>
      {{end}}
    </div>
    {{end}}
    <div>
      <button type="submit">Submit</button>
    </div>
  </form>

  <div class="csv-link-section">
    <h2>Saved data</h2>
    {{if .HasData}}
    <p>The saved data can be viewed as a CSV file ({{.Rows}} rows, {{.Size}}).</p>
    <a href="{{.FileURL}}" target="_blank">Download {{.FileName}}</a>
    {{else}}
    <p>No data has been saved yet.</p>
    {{end}}
  </div>
</body>

</html>
`))
