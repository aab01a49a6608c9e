// Package templates provides email template layout
package templates

import (
	"bytes"
	"html/template"
	"log"
)

type EmailLayoutProps struct {
	Preheader      string
	Content        string
	SiteName       string
	SiteURL        string
	UnsubscribeURL string
}

// Internal template data structure with safe HTML typing
type emailTemplateData struct {
	Preheader      string
	Content        template.HTML // Mark as safe HTML to prevent escaping
	SiteName       string
	SiteURL        string
	UnsubscribeURL string
}

// emailLayoutTemplate is the compiled template for email layout
var emailLayoutTemplate = template.Must(template.New("emailLayout").Parse(`
<!doctype html>
<html lang="en">
  <head>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <meta http-equiv="Content-Type" content="text/html; charset=UTF-8">
    <title>{{.SiteName}}</title>
  </head>
  <body style="font-family: Helvetica, sans-serif; font-size: 16px; line-height: 1.4; background-color: #f6f4ef; margin: 0; padding: 0;">
    <span style="color: transparent; display: none; height: 0; max-height: 0; overflow: hidden; visibility: hidden;">{{.Preheader}}</span>
    <table role="presentation" border="0" cellpadding="0" cellspacing="0" style="width: 100%; background-color: #f6f4ef;" width="100%">
      <tr>
        <td style="padding: 24px 8px;" align="center">
          <table role="presentation" border="0" cellpadding="0" cellspacing="0" style="max-width: 600px; width: 100%; background: #ffffff; border: 1px solid #e7e2d6; border-radius: 16px;" width="600">
            <tr>
              <td style="padding: 24px;">
                {{.Content}}
              </td>
            </tr>
          </table>
          <p style="color: #9a9486; font-size: 14px; text-align: center; padding-top: 16px;">
            <a href="{{.SiteURL}}" style="color: #9a9486;">{{.SiteName}}</a>
            <br><a href="{{.UnsubscribeURL}}" style="color: #9a9486; text-decoration: underline;">Unsubscribe</a>
          </p>
        </td>
      </tr>
    </table>
  </body>
</html>`))

func GetEmailLayout(props EmailLayoutProps) string {
	siteName := props.SiteName
	if siteName == "" {
		siteName = "Lingo Reader"
	}

	preheader := props.Preheader
	if preheader == "" {
		preheader = "Read your way to fluency"
	}

	unsubscribeURL := props.UnsubscribeURL
	if unsubscribeURL == "" {
		unsubscribeURL = props.SiteURL + "/unsubscribe"
	}

	templateData := emailTemplateData{
		Preheader:      preheader,
		Content:        template.HTML(props.Content), // Convert to safe HTML type
		SiteName:       siteName,
		SiteURL:        props.SiteURL,
		UnsubscribeURL: unsubscribeURL,
	}

	var buf bytes.Buffer
	if err := emailLayoutTemplate.Execute(&buf, templateData); err != nil {
		log.Printf("Error executing email layout template: %v", err)
		return "<html><body>Template execution error</body></html>"
	}

	return buf.String()
}
