package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
)

//go:embed templates/*.html
var templateFS embed.FS

var reportTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"upper": strings.ToUpper,
		"paragraphs": func(s string) []string {
			var out []string
			for _, p := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n\n") {
				if p = strings.TrimSpace(p); p != "" {
					out = append(out, p)
				}
			}
			return out
		},
	}

	templateContent, err := templateFS.ReadFile("templates/report.html")
	if err != nil {
		reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	reportTemplate = template.Must(template.New("report").Funcs(funcMap).Parse(string(templateContent)))
}

// RenderReportHTML renders the report template with provided data
func RenderReportHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html lang="de">
<head><meta charset="UTF-8"><title>{{.Title}}</title></head>
<body>
  <h1>{{.Title}}</h1>
  {{if .Subtitle}}<p>{{.Subtitle}}</p>{{end}}
  {{range .Meta}}<p><b>{{.Label}}:</b> {{.Value}}</p>{{end}}
  {{if .Description}}<h2>BESCHREIBUNG</h2><p>{{.Description}}</p>{{end}}
  {{if .Cause}}<h2>SCHADENURSACHE</h2><p>{{.Cause}}</p>{{end}}
  {{range .Rooms}}<h3>{{.Name}}</h3><p>{{.Description}}</p>{{end}}
  {{if .Summary.Rows}}<h2>ZUSAMMENFASSUNG TROCKNUNG</h2>
  <table>{{range .Summary.Rows}}<tr><td>{{.Apartment}}</td><td>{{.Room}}</td><td>#{{.DeviceNumber}}</td><td>{{.Days}} Tage</td><td>{{.Hours}} h</td><td>{{.KWh}} kWh</td></tr>{{end}}
  <tr><td colspan="4">Gesamt</td><td>{{.TotalHours}} h</td><td>{{.TotalKWh}} kWh</td></tr></table>{{end}}
  <p>{{.Footer}}</p>
</body>
</html>`
