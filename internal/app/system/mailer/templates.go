// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
	"html/template"
)

// ApprovalEmailData holds data for registration decision emails.
type ApprovalEmailData struct {
	SiteName string
	OrgName  string
	// Reason is set only for rejections.
	Reason string
}

// BuildOrgApprovedEmail creates the message sent to an organization
// whose registration was approved.
func BuildOrgApprovedEmail(data ApprovalEmailData) Email {
	return Email{
		Subject:  fmt.Sprintf("Registration approved - %s", data.SiteName),
		TextBody: buildApprovedText(data),
		HTMLBody: buildDecisionHTML("approved", data),
	}
}

// BuildOrgRejectedEmail creates the message sent to an organization
// whose registration was rejected, including the administrator's reason.
func BuildOrgRejectedEmail(data ApprovalEmailData) Email {
	return Email{
		Subject:  fmt.Sprintf("Registration not approved - %s", data.SiteName),
		TextBody: buildRejectedText(data),
		HTMLBody: buildDecisionHTML("rejected", data),
	}
}

func buildApprovedText(data ApprovalEmailData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Hello %s,\n\n", orgOrFallback(data))
	fmt.Fprintf(&buf, "Your organization registration on %s has been approved.\n", data.SiteName)
	buf.WriteString("You can now sign in and start handling abandonment reports.\n\n")
	fmt.Fprintf(&buf, "The %s team\n", data.SiteName)
	return buf.String()
}

func buildRejectedText(data ApprovalEmailData) string {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Hello %s,\n\n", orgOrFallback(data))
	fmt.Fprintf(&buf, "Unfortunately your organization registration on %s was not approved.\n\n", data.SiteName)
	buf.WriteString("Reason:\n")
	buf.WriteString(data.Reason + "\n\n")
	buf.WriteString("If you believe this was a mistake, please contact us.\n\n")
	fmt.Fprintf(&buf, "The %s team\n", data.SiteName)
	return buf.String()
}

func buildDecisionHTML(decision string, data ApprovalEmailData) string {
	tmpl := template.Must(template.New("decision").Parse(decisionHTMLTemplate))
	var buf bytes.Buffer
	_ = tmpl.Execute(&buf, struct {
		ApprovalEmailData
		Approved bool
	}{data, decision == "approved"})
	return buf.String()
}

const decisionHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>Registration Decision</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f3f4f6;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 2px 4px rgba(0, 0, 0, 0.1);">
          <tr>
            <td style="padding: 32px 32px 24px; text-align: center; border-bottom: 1px solid #e5e7eb;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #4f46e5;">{{.SiteName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <p style="margin: 0 0 16px; font-size: 16px; color: #374151; line-height: 1.5;">
                Hello {{if .OrgName}}{{.OrgName}}{{else}}there{{end}},
              </p>
              {{if .Approved}}
              <p style="margin: 0 0 16px; font-size: 16px; color: #374151; line-height: 1.5;">
                Your organization registration has been <strong>approved</strong>.
                You can now sign in and start handling abandonment reports.
              </p>
              {{else}}
              <p style="margin: 0 0 16px; font-size: 16px; color: #374151; line-height: 1.5;">
                Unfortunately your organization registration was <strong>not approved</strong>.
              </p>
              <p style="margin: 0 0 8px; font-size: 14px; color: #6b7280;">Reason:</p>
              <div style="background-color: #f3f4f6; border-radius: 8px; padding: 16px; margin-bottom: 16px;">
                <span style="font-size: 14px; color: #1f2937;">{{.Reason}}</span>
              </div>
              <p style="margin: 0 0 16px; font-size: 14px; color: #6b7280;">
                If you believe this was a mistake, please contact us.
              </p>
              {{end}}
            </td>
          </tr>
          <tr>
            <td style="padding: 24px 32px; background-color: #f9fafb; border-top: 1px solid #e5e7eb; border-radius: 0 0 8px 8px;">
              <p style="margin: 0; font-size: 12px; color: #9ca3af; text-align: center;">
                The {{.SiteName}} team
              </p>
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`

func orgOrFallback(data ApprovalEmailData) string {
	if data.OrgName != "" {
		return data.OrgName
	}
	return "there"
}
