package export

import (
	"encoding/json"
	"html/template"
	"strings"
	"testing"

	"folio/api/internal/editor"
)

func TestSectionsToHTML(t *testing.T) {
	tests := []struct {
		name     string
		sections []editor.Section
		expected string
	}{
		{
			name:     "no sections",
			sections: nil,
			expected: "",
		},
		{
			name: "hero section",
			sections: []editor.Section{
				{
					Kind: editor.SectionHero,
					Data: json.RawMessage(`{"heading":"Avery Quinn","tagline":"Product Designer"}`),
				},
			},
			expected: "<h1>Avery Quinn</h1>",
		},
		{
			name: "about paragraphs",
			sections: []editor.Section{
				{
					Kind: editor.SectionAbout,
					Data: json.RawMessage(`{"body":"First paragraph.\n\nSecond paragraph."}`),
				},
			},
			expected: "<p>Second paragraph.</p>",
		},
		{
			name: "skills list",
			sections: []editor.Section{
				{
					Kind: editor.SectionSkills,
					Data: json.RawMessage(`{"skills":["Go","Figma",{"name":"SQL"}]}`),
				},
			},
			expected: "<li>SQL</li>",
		},
		{
			name: "project entry",
			sections: []editor.Section{
				{
					Kind: editor.SectionProjects,
					Data: json.RawMessage(`{"projects":[{"title":"Folio","description":"A portfolio builder","link":"https://example.com"}]}`),
				},
			},
			expected: "<h3>Folio</h3>",
		},
		{
			name: "experience entry",
			sections: []editor.Section{
				{
					Kind: editor.SectionExperience,
					Data: json.RawMessage(`{"entries":[{"title":"Engineer","organization":"Acme","period":"2020-2024"}]}`),
				},
			},
			expected: `<p class="org">Acme</p>`,
		},
		{
			name: "contact links",
			sections: []editor.Section{
				{
					Kind: editor.SectionContact,
					Data: json.RawMessage(`{"email":"avery@example.com","links":["https://github.com/avery"]}`),
				},
			},
			expected: "<li>https://github.com/avery</li>",
		},
		{
			name: "html in data is escaped",
			sections: []editor.Section{
				{
					Kind: editor.SectionHero,
					Data: json.RawMessage(`{"heading":"<script>alert(1)</script>"}`),
				},
			},
			expected: "&lt;script&gt;",
		},
		{
			name: "malformed data is skipped",
			sections: []editor.Section{
				{
					Kind: editor.SectionAbout,
					Data: json.RawMessage(`not json`),
				},
			},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SectionsToHTML(editor.Content{Sections: tt.sections})
			if !strings.Contains(result, tt.expected) {
				t.Errorf("SectionsToHTML() = %v, want substring %v", result, tt.expected)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Hello World", "Hello-World"},
		{"My Portfolio v1.2", "My-Portfolio-v12"},
		{"Special!@#$%Chars", "SpecialChars"},
		{"", "portfolio"},
		{"Very Long Title That Exceeds Fifty Characters Limit", "Very-Long-Title-That-Exceeds-Fifty-Characters-Limi"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := sanitizeFilename(tt.input)
			if result != tt.expected {
				t.Errorf("sanitizeFilename(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"hello world", "hello%20world"},
		{"test+sign", "test%2Bsign"},
		{"special<>", "special%3C%3E"},
		{"normal-text.txt", "normal-text.txt"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := percentEncodeForDataURL(tt.input)
			if result != tt.expected {
				t.Errorf("percentEncodeForDataURL(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestRenderPortfolioHTML(t *testing.T) {
	data := TemplateData{
		Title:       "Avery Quinn",
		OwnerName:   "Avery Quinn",
		ContentHTML: template.HTML("<p>This is the content.</p>"),
	}

	html, err := RenderPortfolioHTML(data)
	if err != nil {
		t.Fatalf("RenderPortfolioHTML() error = %v", err)
	}
	if !strings.Contains(html, "<title>Avery Quinn</title>") {
		t.Errorf("rendered HTML missing title: %s", html)
	}
	if !strings.Contains(html, "<p>This is the content.</p>") {
		t.Errorf("rendered HTML missing content: %s", html)
	}
}
