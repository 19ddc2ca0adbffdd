package export

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"folio/api/internal/editor"
)

// SectionsToHTML renders portfolio sections to an HTML fragment. Sections are
// rendered in order; unknown kinds and malformed data are skipped rather than
// failing the whole export.
func SectionsToHTML(content editor.Content) string {
	var sb strings.Builder
	for _, sec := range content.Sections {
		data := decodeSectionData(sec.Data)
		switch sec.Kind {
		case editor.SectionHero:
			renderHero(&sb, data)
		case editor.SectionAbout:
			renderAbout(&sb, data)
		case editor.SectionSkills:
			renderSkills(&sb, data)
		case editor.SectionProjects:
			renderProjects(&sb, data)
		case editor.SectionExperience:
			renderEntries(&sb, data, "Experience")
		case editor.SectionEducation:
			renderEntries(&sb, data, "Education")
		case editor.SectionContact:
			renderContact(&sb, data)
		}
	}
	return sb.String()
}

func decodeSectionData(raw json.RawMessage) map[string]interface{} {
	if len(raw) == 0 {
		return map[string]interface{}{}
	}
	var data map[string]interface{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return map[string]interface{}{}
	}
	return data
}

func renderHero(sb *strings.Builder, data map[string]interface{}) {
	heading := getString(data, "heading")
	tagline := getString(data, "tagline")
	if heading == "" && tagline == "" {
		return
	}
	sb.WriteString(`<section class="hero">`)
	if heading != "" {
		fmt.Fprintf(sb, "<h1>%s</h1>", html.EscapeString(heading))
	}
	if tagline != "" {
		fmt.Fprintf(sb, `<p class="tagline">%s</p>`, html.EscapeString(tagline))
	}
	sb.WriteString("</section>")
}

func renderAbout(sb *strings.Builder, data map[string]interface{}) {
	body := getString(data, "body")
	if body == "" {
		return
	}
	sb.WriteString(`<section class="about"><h2>About</h2>`)
	for _, para := range strings.Split(body, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		fmt.Fprintf(sb, "<p>%s</p>", html.EscapeString(para))
	}
	sb.WriteString("</section>")
}

func renderSkills(sb *strings.Builder, data map[string]interface{}) {
	skills := getList(data, "skills")
	if len(skills) == 0 {
		return
	}
	sb.WriteString(`<section class="skills"><h2>Skills</h2><ul>`)
	for _, skill := range skills {
		name := ""
		switch v := skill.(type) {
		case string:
			name = v
		case map[string]interface{}:
			name = getString(v, "name")
		}
		if name != "" {
			fmt.Fprintf(sb, "<li>%s</li>", html.EscapeString(name))
		}
	}
	sb.WriteString("</ul></section>")
}

func renderProjects(sb *strings.Builder, data map[string]interface{}) {
	projects := getList(data, "projects")
	if len(projects) == 0 {
		return
	}
	sb.WriteString(`<section class="projects"><h2>Projects</h2>`)
	for _, raw := range projects {
		project, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		sb.WriteString(`<div class="project">`)
		if title := getString(project, "title"); title != "" {
			fmt.Fprintf(sb, "<h3>%s</h3>", html.EscapeString(title))
		}
		if desc := getString(project, "description"); desc != "" {
			fmt.Fprintf(sb, "<p>%s</p>", html.EscapeString(desc))
		}
		if link := getString(project, "link"); link != "" {
			fmt.Fprintf(sb, `<p class="link">%s</p>`, html.EscapeString(link))
		}
		sb.WriteString("</div>")
	}
	sb.WriteString("</section>")
}

func renderEntries(sb *strings.Builder, data map[string]interface{}, heading string) {
	entries := getList(data, "entries")
	if len(entries) == 0 {
		return
	}
	fmt.Fprintf(sb, `<section class="%s"><h2>%s</h2>`, strings.ToLower(heading), heading)
	for _, raw := range entries {
		entry, ok := raw.(map[string]interface{})
		if !ok {
			continue
		}
		sb.WriteString(`<div class="entry">`)
		if title := getString(entry, "title"); title != "" {
			fmt.Fprintf(sb, "<h3>%s</h3>", html.EscapeString(title))
		}
		if org := getString(entry, "organization"); org != "" {
			fmt.Fprintf(sb, `<p class="org">%s</p>`, html.EscapeString(org))
		}
		if period := getString(entry, "period"); period != "" {
			fmt.Fprintf(sb, `<p class="period">%s</p>`, html.EscapeString(period))
		}
		if summary := getString(entry, "summary"); summary != "" {
			fmt.Fprintf(sb, "<p>%s</p>", html.EscapeString(summary))
		}
		sb.WriteString("</div>")
	}
	sb.WriteString("</section>")
}

func renderContact(sb *strings.Builder, data map[string]interface{}) {
	email := getString(data, "email")
	links := getList(data, "links")
	if email == "" && len(links) == 0 {
		return
	}
	sb.WriteString(`<section class="contact"><h2>Contact</h2>`)
	if email != "" {
		fmt.Fprintf(sb, `<p class="email">%s</p>`, html.EscapeString(email))
	}
	if len(links) > 0 {
		sb.WriteString("<ul>")
		for _, raw := range links {
			link := ""
			switch v := raw.(type) {
			case string:
				link = v
			case map[string]interface{}:
				link = getString(v, "url")
			}
			if link != "" {
				fmt.Fprintf(sb, "<li>%s</li>", html.EscapeString(link))
			}
		}
		sb.WriteString("</ul>")
	}
	sb.WriteString("</section>")
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func getList(data map[string]interface{}, key string) []interface{} {
	if v, ok := data[key].([]interface{}); ok {
		return v
	}
	return nil
}
