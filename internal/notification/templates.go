package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"text/template"
	"time"

	"fraudcase/internal/models"
)

// TemplateData is substituted into the category templates
type TemplateData struct {
	Authority    string
	CaseCode     string
	CaseType     string
	Description  string
	Amount       string
	IncidentDate time.Time
	Location     string
	Reporter     string
	ReporterMail string
	Scammer      models.ScammerProfile
	HasScammer   bool
}

type categoryTemplates struct {
	subject *template.Template
	text    *template.Template
	html    *htmltemplate.Template
}

// Templates holds the subject and body templates for each category
type Templates struct {
	byCategory map[models.Category]categoryTemplates
}

const scammerText = `{{if .HasScammer}}
Suspect details:
{{with .Scammer}}{{if .Name}}- Name: {{.Name}}
{{end}}{{if .Phone}}- Phone: {{.Phone}}
{{end}}{{if .Email}}- Email: {{.Email}}
{{end}}{{if .PaymentHandle}}- Payment handle: {{.PaymentHandle}}
{{end}}{{if .BankAccount}}- Bank account: {{.BankAccount}}
{{end}}{{if .RoutingCode}}- Routing code: {{.RoutingCode}}
{{end}}{{end}}{{end}}`

const caseText = `Case reference: {{.CaseCode}}
Fraud type: {{.CaseType}}
Amount involved: {{.Amount}}
Incident date: {{.IncidentDate.Format "02 Jan 2006"}}
Location: {{.Location}}
Reported by: {{.Reporter}}
`

var defaultTemplates = map[models.Category]struct{ subject, request string }{
	models.CategoryTelecom: {
		subject: "[{{.CaseCode}}] Request for subscriber details under Section 91 CrPC",
		request: "Please furnish subscriber, KYC and call detail records for the numbers listed below and block them pending investigation.",
	},
	models.CategoryBanking: {
		subject: "[{{.CaseCode}}] Request to freeze beneficiary accounts under Section 91 CrPC",
		request: "Please place a debit freeze on the beneficiary accounts listed below and share KYC and statement details from the incident date.",
	},
	models.CategoryNodal: {
		subject: "[{{.CaseCode}}] Cyber fraud complaint for nodal action",
		request: "A cyber fraud complaint has been verified and a notice generated. The notice is attached for coordination and onward action.",
	},
}

const htmlBody = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.CaseCode}}</title></head>
<body>
    <h2>{{.Authority}}</h2>
    <p>%s</p>
    <table>
        <tr><td><strong>Case reference:</strong></td><td>{{.CaseCode}}</td></tr>
        <tr><td><strong>Fraud type:</strong></td><td>{{.CaseType}}</td></tr>
        <tr><td><strong>Amount involved:</strong></td><td>{{.Amount}}</td></tr>
        <tr><td><strong>Incident date:</strong></td><td>{{.IncidentDate.Format "02 Jan 2006"}}</td></tr>
        <tr><td><strong>Location:</strong></td><td>{{.Location}}</td></tr>
        <tr><td><strong>Reported by:</strong></td><td>{{.Reporter}}</td></tr>
    </table>
    {{if .HasScammer}}{{with .Scammer}}
    <h3>Suspect details</h3>
    <ul>
        {{if .Name}}<li>Name: {{.Name}}</li>{{end}}
        {{if .Phone}}<li>Phone: {{.Phone}}</li>{{end}}
        {{if .Email}}<li>Email: {{.Email}}</li>{{end}}
        {{if .PaymentHandle}}<li>Payment handle: {{.PaymentHandle}}</li>{{end}}
        {{if .BankAccount}}<li>Bank account: {{.BankAccount}}</li>{{end}}
        {{if .RoutingCode}}<li>Routing code: {{.RoutingCode}}</li>{{end}}
    </ul>
    {{end}}{{end}}
    <p>{{.Description}}</p>
</body>
</html>
`

// NewTemplates parses the built-in category templates
func NewTemplates() (*Templates, error) {
	t := &Templates{byCategory: make(map[models.Category]categoryTemplates)}

	for category, def := range defaultTemplates {
		name := string(category)

		subject, err := template.New(name + "-subject").Parse(def.subject)
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s subject template: %w", name, err)
		}

		text, err := template.New(name + "-text").Parse("{{.Authority}}\n\n" + def.request + "\n\n" + caseText + scammerText + "\n{{.Description}}\n")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s text template: %w", name, err)
		}

		html, err := htmltemplate.New(name + "-html").Parse(fmt.Sprintf(htmlBody, def.request))
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s HTML template: %w", name, err)
		}

		t.byCategory[category] = categoryTemplates{subject: subject, text: text, html: html}
	}

	return t, nil
}

// Render produces the subject and bodies for category
func (t *Templates) Render(category models.Category, data TemplateData) (subject, text, html string, err error) {
	tmpl, ok := t.byCategory[category]
	if !ok {
		return "", "", "", fmt.Errorf("no template for category %q", category)
	}

	var buf bytes.Buffer
	if err := tmpl.subject.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("failed to render subject: %w", err)
	}
	subject = buf.String()

	buf.Reset()
	if err := tmpl.text.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("failed to render text body: %w", err)
	}
	text = buf.String()

	buf.Reset()
	if err := tmpl.html.Execute(&buf, data); err != nil {
		return "", "", "", fmt.Errorf("failed to render HTML body: %w", err)
	}
	html = buf.String()

	return subject, text, html, nil
}

func templateData(authority string, c models.Case, scammer *models.ScammerProfile) TemplateData {
	data := TemplateData{
		Authority:    authority,
		CaseCode:     c.CaseCode,
		CaseType:     c.CaseType,
		Description:  c.Description,
		Amount:       fmt.Sprintf("INR %.2f", c.Amount),
		IncidentDate: c.IncidentDate,
		Location:     c.Location,
		Reporter:     c.ReporterName,
		ReporterMail: c.Contact.Email,
	}
	if name := c.Form.ReporterName(); name != "" {
		data.Reporter = name
	}
	if scammer != nil {
		data.Scammer = *scammer
		data.HasScammer = true
	}
	return data
}
