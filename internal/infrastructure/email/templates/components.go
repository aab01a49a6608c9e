package templates

import (
	"bytes"
	"html/template"
	"log"
	"net/url"
)

type ButtonProps struct {
	Text string
	URL  string
}

var buttonTemplate = template.Must(template.New("button").Parse(
	`<table role="presentation" border="0" cellpadding="0" cellspacing="0" style="margin: 16px 0;"><tr><td style="border-radius: 8px; background-color: #2f6f5e;"><a href="{{.URL}}" target="_blank" style="display: inline-block; padding: 12px 24px; color: #ffffff; font-weight: bold; text-decoration: none;">{{.Text}}</a></td></tr></table>`))

var paragraphTemplate = template.Must(template.New("paragraph").Parse(
	`<p style="margin: 0 0 16px 0; font-size: 16px;">{{.}}</p>`))

// GetButton renders a call-to-action button. Non-http(s) URLs are replaced with "#".
func GetButton(props ButtonProps) string {
	props.URL = sanitizeEmailURL(props.URL)
	var buf bytes.Buffer
	if err := buttonTemplate.Execute(&buf, props); err != nil {
		log.Printf("Error executing button template: %v", err)
		return ""
	}
	return buf.String()
}

// GetParagraph renders escaped text as a paragraph.
func GetParagraph(text string) string {
	var buf bytes.Buffer
	if err := paragraphTemplate.Execute(&buf, text); err != nil {
		log.Printf("Error executing paragraph template: %v", err)
		return ""
	}
	return buf.String()
}

type WelcomeEmailProps struct {
	SiteName  string
	SignupURL string
}

// GetWelcomeEmailContent renders the newsletter welcome body.
func GetWelcomeEmailContent(props WelcomeEmailProps) string {
	return GetParagraph("Hi there,") +
		GetParagraph("Thanks for subscribing to "+props.SiteName+". Every other week we send one short story graded for your level, with the tricky words already explained.") +
		GetParagraph("When you are ready to read in your target language, your free trial is one click away.") +
		GetButton(ButtonProps{Text: "Start reading", URL: props.SignupURL})
}

func sanitizeEmailURL(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "#"
	}
	return parsed.String()
}
