package notification

import (
	"bytes"
	htmltemplate "html/template"
	"io"
	"strings"
	"text/template"
	"time"
)

const dateLayout = "02/01/2006"

func formatDate(t time.Time) string {
	return t.Format(dateLayout)
}

var funcs = template.FuncMap{
	"date": formatDate,
}

// Colors come from fixed tables, so they are safe to emit inside <style>.
var htmlFuncs = htmltemplate.FuncMap{
	"date":      formatDate,
	"upper":     strings.ToUpper,
	"htmlColor": func(color string) htmltemplate.CSS { return htmltemplate.CSS(color) },
}

var renewalEmailBody = template.Must(template.New("renewal-body").Funcs(funcs).Parse(
	`Hello {{.ClientName}},

{{.Action}}

Plan details:
- Plan: {{.PlanName}}
- Renewal date: {{date .RenewalDate}}
- Days left: {{if gt .Days 0}}{{.Days}}{{else}}EXPIRED{{end}}

To renew your plan, visit the admin panel or get in touch with us.

Best regards,
The Nuvelon Team`))

var renewalSMS = template.Must(template.New("renewal-sms").Parse(
	`[{{.Urgency}}] Nuvelon: {{.Action}} Plan: {{.PlanName}}. Renew at nuvelon.com`))

var renewalEmailHTML = htmltemplate.Must(htmltemplate.New("renewal-html").Funcs(htmlFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: linear-gradient(135deg, #667eea 0%, #764ba2 100%); color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background: #f9fafb; }
        .alert { background: {{.Color | htmlColor}}; color: white; padding: 15px; border-radius: 5px; margin: 20px 0; }
        .details { background: white; padding: 20px; border-radius: 5px; margin: 20px 0; }
        .footer { text-align: center; padding: 20px; color: #6b7280; font-size: 14px; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>Nuvelon Cloud Gaming</h1></div>
        <div class="content">
            <h2>Hello {{.ClientName}},</h2>
            <div class="alert"><strong>{{.Action}}</strong></div>
            <div class="details">
                <h3>Plan details:</h3>
                <p><strong>Plan:</strong> {{.PlanName}}</p>
                <p><strong>Renewal date:</strong> {{date .RenewalDate}}</p>
                <p><strong>Days left:</strong> {{if gt .Days 0}}{{.Days}}{{else}}EXPIRED{{end}}</p>
            </div>
            <p>To renew your plan, visit the admin panel or get in touch with us.</p>
        </div>
        <div class="footer"><p>Best regards,<br>The Nuvelon Team</p></div>
    </div>
</body>
</html>`))

var systemEmailHTML = htmltemplate.Must(htmltemplate.New("system-html").Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: #1f2937; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background: #f9fafb; }
        .message { background: white; padding: 20px; border-radius: 5px; margin: 20px 0; white-space: pre-line; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>Nuvelon - System Notification</h1></div>
        <div class="content">
            <h2>{{.Title}}</h2>
            <div class="message"><p>{{.Message}}</p></div>
        </div>
    </div>
</body>
</html>`))

var alertEmailHTML = htmltemplate.Must(htmltemplate.New("alert-html").Funcs(htmlFuncs).Parse(`<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <style>
        body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
        .container { max-width: 600px; margin: 0 auto; padding: 20px; }
        .header { background: {{.Color | htmlColor}}; color: white; padding: 20px; text-align: center; }
        .content { padding: 20px; background: #f9fafb; }
        .alert { background: {{.Color | htmlColor}}; color: white; padding: 15px; border-radius: 5px; margin: 20px 0; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header"><h1>{{upper .Severity}} ALERT - Nuvelon</h1></div>
        <div class="content">
            <h2>{{.Title}}</h2>
            <div class="alert"><p><strong>{{.Message}}</strong></p></div>
            <p>This is an automated system notification. Immediate action may be required.</p>
        </div>
    </div>
</body>
</html>`))

type renewalView struct {
	ClientName  string
	PlanName    string
	RenewalDate time.Time
	Days        int
	Urgency     string
	Action      string
	Color       string
}

type systemView struct {
	Title   string
	Message string
}

type alertView struct {
	Title    string
	Message  string
	Severity string
	Color    string
}

type executor interface {
	Execute(w io.Writer, data any) error
}

func render(tmpl executor, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
