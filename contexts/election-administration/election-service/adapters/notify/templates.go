package notify

import (
	"bytes"
	"fmt"
	"text/template"

	"campusvote/contexts/election-administration/election-service/domain/entities"
)

type messageTemplate struct {
	subject string
	body    *template.Template
}

var templates = map[string]messageTemplate{
	entities.TemplateCaseReviewed: {
		subject: "Your candidacy application was reviewed",
		body: template.Must(template.New("case_reviewed").Parse(
			"Your application for {{.position}} has been reviewed by the election committee.\n" +
				"You may now request a screening appointment.\n")),
	},
	entities.TemplateCaseApproved: {
		subject: "Your candidacy application was approved",
		body: template.Must(template.New("case_approved").Parse(
			"Your application for {{.position}} has been approved.\n" +
				"{{if .note}}Note from the committee: {{.note}}\n{{end}}")),
	},
	entities.TemplateCaseRejected: {
		subject: "Your candidacy application was rejected",
		body: template.Must(template.New("case_rejected").Parse(
			"Your application for {{.position}} was not accepted.\n" +
				"{{if .note}}Reason: {{.note}}\n{{end}}")),
	},
	entities.TemplateAppointmentDecided: {
		subject: "Screening appointment update",
		body: template.Must(template.New("appointment_decided").Parse(
			"Your screening appointment on {{.slot_key}} was {{.status}}.\n" +
				"{{if .venue}}Venue: {{.venue}}\n{{end}}{{if .note}}Note: {{.note}}\n{{end}}")),
	},
	entities.TemplateScreeningOutcome: {
		subject: "Screening result",
		body: template.Must(template.New("screening_outcome").Parse(
			"Your screening for {{.position}} is complete. Result: {{.outcome}}.\n")),
	},
	entities.TemplateMaterialReviewed: {
		subject: "Campaign material review",
		body: template.Must(template.New("campaign_material_reviewed").Parse(
			"Your campaign material was {{.status}}.\n" +
				"{{if .reason}}Reason: {{.reason}}\n{{end}}")),
	},
}

// Render builds the subject and plain-text body for a notification.
func Render(notification entities.Notification) (string, string, error) {
	tmpl, ok := templates[notification.TemplateKind]
	if !ok {
		return "", "", fmt.Errorf("unknown notification template %q", notification.TemplateKind)
	}
	data := notification.TemplateData
	if data == nil {
		data = map[string]string{}
	}
	var body bytes.Buffer
	if err := tmpl.body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("render %s: %w", notification.TemplateKind, err)
	}
	return tmpl.subject, body.String(), nil
}
