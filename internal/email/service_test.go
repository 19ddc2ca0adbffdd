package email

import (
	"strings"
	"testing"
)

func TestIsConfigured(t *testing.T) {
	cases := []struct {
		name   string
		config Config
		want   bool
	}{
		{"empty", Config{}, false},
		{"missing host", Config{Port: "587", From: "a@b.c"}, false},
		{"missing port", Config{Host: "smtp.example.com", From: "a@b.c"}, false},
		{"missing from", Config{Host: "smtp.example.com", Port: "587"}, false},
		{"complete", Config{Host: "smtp.example.com", Port: "587", From: "a@b.c"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewService(tc.config).IsConfigured(); got != tc.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSendFailsWhenUnconfigured(t *testing.T) {
	svc := NewService(Config{})
	if err := svc.SendEmail([]string{"a@b.c"}, "subject", "body"); err == nil {
		t.Fatal("expected error when unconfigured")
	}
	if err := svc.SendVerificationEmail("a@b.c", "Jamie", "http://x/verify"); err == nil {
		t.Fatal("expected error when unconfigured")
	}
}

func TestTemplatesRender(t *testing.T) {
	html, err := renderTemplate(verificationEmailTemplate, accountMailData{
		UserName:  "Jamie",
		ActionURL: "https://folio.test/verify?token=abc",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "Jamie") || !strings.Contains(html, "https://folio.test/verify?token=abc") {
		t.Fatal("verification template missing substitutions")
	}

	html, err = renderTemplate(passwordResetEmailTemplate, accountMailData{
		UserName:  "Jamie",
		ActionURL: "https://folio.test/reset?token=abc",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(html, "reset?token=abc") {
		t.Fatal("reset template missing substitutions")
	}
}
