package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

// SafeHTML is a template function that marks a string as safe HTML
func SafeHTML(s interface{}) template.HTML {
	switch v := s.(type) {
	case string:
		return template.HTML(v)
	case template.HTML:
		return v
	default:
		return template.HTML("")
	}
}

//go:embed templates/*.html
var templateFS embed.FS

var portfolioTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
		"safeHTML": SafeHTML,
	}

	templateContent, err := templateFS.ReadFile("templates/portfolio.html")
	if err != nil {
		// Fallback to built-in template if file not found
		portfolioTemplate = template.Must(template.New("portfolio").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	portfolioTemplate = template.Must(template.New("portfolio").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for portfolio template rendering
type TemplateData struct {
	Title       string
	OwnerName   string
	ContentHTML template.HTML
	PublishedAt time.Time
}

// RenderPortfolioHTML renders the portfolio template with provided data
func RenderPortfolioHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := portfolioTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; }
    h2 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
  </style>
</head>
<body>
  <div class="meta">{{.OwnerName}}</div>
  <div>{{.ContentHTML | safeHTML}}</div>
</body>
</html>`
