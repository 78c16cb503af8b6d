package notification

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"html"
	"strings"
	"sync"
	"text/template"

	"github.com/smallbiznis/labdesk/internal/config"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

//go:embed templates/*.md
var templateFS embed.FS

// Template names. Each maps to templates/<name>.md.
const (
	TemplateTrainingRequest       = "training_request"
	TemplateQuiz                  = "quiz"
	TemplateQuizFailed            = "quiz_failed"
	TemplateQuizPassed            = "quiz_passed"
	TemplateSupplies              = "supplies"
	TemplateBasketAssigned        = "basket_assigned"
	TemplateBasketUnavailable     = "basket_unavailable"
	TemplateBasketPurge           = "basket_purge"
	TemplateAccessControl         = "access_control"
	TemplateLabAccessConfirmation = "lab_access_confirmation"
	TemplateLabAccessText         = "lab_access_text"
	TemplateLabAccessEvent        = "lab_access_event"
)

var ErrUnknownTemplate = errors.New("unknown_template")

// onboardingSteps is the progress footer shown on onboarding mail.
var onboardingSteps = []string{
	"Request safety training",
	"Attend safety training",
	"Pass quiz",
	"Submit MER User Registration form",
	"Get badge, basket, glasses from Facilities Office (1.108)",
}

// Step is the onboarding step a template belongs to, zero when it has no footer.
func Step(name string) int {
	switch name {
	case TemplateTrainingRequest:
		return 1
	case TemplateQuiz, TemplateQuizFailed:
		return 3
	case TemplateQuizPassed, TemplateAccessControl:
		return 4
	case TemplateSupplies:
		return 5
	}
	return 0
}

type Renderer struct {
	md    goldmark.Markdown
	links []string

	once  sync.Once
	tmpl  *template.Template
	parse error
}

func NewRenderer(forms config.FormLinks) *Renderer {
	return &Renderer{
		md: goldmark.New(goldmark.WithExtensions(extension.GFM)),
		links: []string{
			config.ExpandURL(forms.TrainingRequest, nil),
			forms.TrainingSlides,
			config.ExpandURL(forms.Quiz, nil),
			config.ExpandURL(forms.Onboarding, nil),
			config.ExpandURL(forms.BasketRequest, nil),
		},
	}
}

func (r *Renderer) templates() (*template.Template, error) {
	r.once.Do(func() {
		r.tmpl, r.parse = template.New("mail").Option("missingkey=zero").ParseFS(templateFS, "templates/*.md")
	})
	return r.tmpl, r.parse
}

// Text executes a template without markdown conversion. Used for SMS bodies and calendar descriptions.
func (r *Renderer) Text(name string, data any) (string, error) {
	tmpl, err := r.templates()
	if err != nil {
		return "", err
	}
	t := tmpl.Lookup(name + ".md")
	if t == nil {
		return "", fmt.Errorf("%w: %s", ErrUnknownTemplate, name)
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("execute %s: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// HTML executes a template and renders the markdown result. With progress set, the
// onboarding footer for the template's step is appended.
func (r *Renderer) HTML(name string, data any, progress bool) (string, error) {
	source, err := r.Text(name, data)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := r.md.Convert([]byte(source), &buf); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	if progress {
		if step := Step(name); step > 0 {
			buf.WriteString(r.footer(step))
		}
	}
	return buf.String(), nil
}

func (r *Renderer) footer(current int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<hr><p><strong>Onboarding progress: step %d of %d</strong></p><ol>`, current, len(onboardingSteps))
	for i, step := range onboardingSteps {
		label := html.EscapeString(step)
		if link := r.links[i]; link != "" {
			label = fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(link), label)
		}
		switch {
		case i+1 < current:
			fmt.Fprintf(&b, `<li><s>%s</s> &#10003;</li>`, label)
		case i+1 == current:
			fmt.Fprintf(&b, `<li><strong>%s</strong></li>`, label)
		default:
			fmt.Fprintf(&b, `<li>%s</li>`, label)
		}
	}
	b.WriteString(`</ol>`)
	return b.String()
}
