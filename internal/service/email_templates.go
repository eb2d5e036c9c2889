package service

import (
	"fmt"
	"html"
	"strings"
)

// TemplateData is the context available to sequence email templates.
type TemplateData struct {
	Name       string
	Email      string
	AppName    string
	StepNumber int
}

// RenderedEmail is a subject and HTML body ready for the mailer.
type RenderedEmail struct {
	Subject string
	HTML    string
}

// TemplateFunc renders one email template.
type TemplateFunc func(data TemplateData) RenderedEmail

// TemplateRegistry resolves template codes referenced by sequence steps.
type TemplateRegistry struct {
	templates map[string]TemplateFunc
}

// NewTemplateRegistry returns a registry holding the built-in admissions templates.
func NewTemplateRegistry() *TemplateRegistry {
	r := &TemplateRegistry{templates: make(map[string]TemplateFunc)}
	r.Register("lead_welcome", leadWelcome)
	r.Register("campus_tour_invite", campusTourInvite)
	r.Register("financial_aid_overview", financialAidOverview)
	r.Register("apply_now_reminder", applyNowReminder)
	r.Register("application_incomplete_reminder", applicationIncompleteReminder)
	r.Register("enrollment_next_steps", enrollmentNextSteps)
	return r
}

// Register adds or replaces a template.
func (r *TemplateRegistry) Register(code string, fn TemplateFunc) {
	r.templates[code] = fn
}

// Render produces the email for code.
func (r *TemplateRegistry) Render(code string, data TemplateData) (RenderedEmail, error) {
	fn, ok := r.templates[code]
	if !ok {
		return RenderedEmail{}, fmt.Errorf("unknown email template %q", code)
	}
	if strings.TrimSpace(data.AppName) == "" {
		data.AppName = "Barber Academy"
	}
	return fn(data), nil
}

func greeting(data TemplateData) string {
	name := strings.TrimSpace(data.Name)
	if name == "" {
		return "Hi there,"
	}
	if first := strings.Fields(name); len(first) > 0 {
		name = first[0]
	}
	return "Hi " + html.EscapeString(name) + ","
}

func layout(data TemplateData, paragraphs ...string) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family:Arial,sans-serif;font-size:15px;line-height:1.5;color:#222">`)
	b.WriteString("<p>" + greeting(data) + "</p>")
	for _, p := range paragraphs {
		b.WriteString("<p>" + p + "</p>")
	}
	b.WriteString("<p>The Admissions Team<br>" + html.EscapeString(data.AppName) + "</p>")
	b.WriteString(`<p style="font-size:12px;color:#888">You are receiving this because you asked about our programs. Reply STOP to unsubscribe.</p>`)
	b.WriteString("</div>")
	return b.String()
}

func leadWelcome(data TemplateData) RenderedEmail {
	return RenderedEmail{
		Subject: "Welcome to " + data.AppName,
		HTML: layout(data,
			"Thanks for your interest in becoming a licensed barber with "+html.EscapeString(data.AppName)+".",
			"Our programs combine classroom theory with hands-on clinic floor hours so you graduate ready for the state board exam.",
		),
	}
}

func campusTourInvite(data TemplateData) RenderedEmail {
	return RenderedEmail{
		Subject: "Come see our campus",
		HTML: layout(data,
			"The best way to get a feel for the academy is to walk the clinic floor and meet our instructors.",
			"Reply to this email with a day that works for you and we will set up a tour.",
		),
	}
}

func financialAidOverview(data TemplateData) RenderedEmail {
	return RenderedEmail{
		Subject: "Paying for barber school",
		HTML: layout(data,
			"Most of our students qualify for some form of financial aid, including Pell Grants and federal loans.",
			"Our financial aid office can walk you through the FAFSA and build an estimate for your program.",
		),
	}
}

func applyNowReminder(data TemplateData) RenderedEmail {
	return RenderedEmail{
		Subject: "Ready to apply?",
		HTML: layout(data,
			"Classes start on a rolling basis and seats fill quickly.",
			"The application takes about ten minutes and there is no fee to apply.",
		),
	}
}

func applicationIncompleteReminder(data TemplateData) RenderedEmail {
	return RenderedEmail{
		Subject: "Finish your application",
		HTML: layout(data,
			"We noticed your application is not complete yet.",
			"Pick up where you left off and our admissions team will review it as soon as it is submitted.",
		),
	}
}

func enrollmentNextSteps(data TemplateData) RenderedEmail {
	return RenderedEmail{
		Subject: "Your next steps at " + data.AppName,
		HTML: layout(data,
			"Here is what happens next: sign your enrollment agreement, complete financial aid paperwork and pick up your kit.",
			"Your admissions representative will reach out to schedule orientation.",
		),
	}
}
