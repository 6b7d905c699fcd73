package notify

import (
	"bytes"
	"context"
	"fmt"
	html "html/template"
	text "text/template"

	gomail "gopkg.in/gomail.v2"

	appErr "github.com/appforge/engine/pkg/errors"
)

// DeploymentEmail summarizes a finished run for the requesting user.
type DeploymentEmail struct {
	RecipientEmail string
	ProjectName    string
	DeploymentURL  string
	RepoURL        string
	Features       []string
	TechStack      []string
}

// Sender delivers run notifications. Failures are advisory: the pipeline
// downgrades them to warnings.
type Sender interface {
	SendDeploymentEmail(ctx context.Context, email DeploymentEmail) error
}

// SMTPConfig configures the outbound mail account.
type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

type smtpSender struct {
	dialer *gomail.Dialer
	from   string
}

// NewSMTPSender builds a Sender over an SSL SMTP connection.
func NewSMTPSender(cfg SMTPConfig) Sender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass)
	d.SSL = cfg.Port == 465
	return &smtpSender{dialer: d, from: cfg.From}
}

var htmlBody = html.Must(html.New("deployment").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h1>Your application is live</h1>
    <p><strong>{{.ProjectName}}</strong> has been deployed to production.</p>
    <p>
      <a href="{{.DeploymentURL}}">Open the application</a> &middot;
      <a href="{{.RepoURL}}">Browse the source</a>
    </p>
    <h3>Features</h3>
    <ul>
    {{- range .Features}}
      <li>{{.}}</li>
    {{- end}}
    </ul>
    <h3>Tech stack</h3>
    <p>
    {{- range .TechStack}}
      <span style="display: inline-block; background: #e0e7ff; padding: 4px 8px; border-radius: 3px; margin: 2px; font-size: 12px;">{{.}}</span>
    {{- end}}
    </p>
    <hr>
    <p style="color: #666; font-size: 14px;">
      Production URL: <a href="{{.DeploymentURL}}">{{.DeploymentURL}}</a><br>
      Repository: <a href="{{.RepoURL}}">{{.RepoURL}}</a>
    </p>
    <p style="color: #999; font-size: 12px;">This message was generated automatically.</p>
  </div>
</body>
</html>
`))

var textBody = text.Must(text.New("deployment").Parse(`Your application is live.

Project: {{.ProjectName}}

Production URL: {{.DeploymentURL}}
Repository: {{.RepoURL}}

Features:
{{- range .Features}}
- {{.}}
{{- end}}

Tech stack: {{range $i, $t := .TechStack}}{{if $i}}, {{end}}{{$t}}{{end}}

This message was generated automatically.
`))

func (s *smtpSender) SendDeploymentEmail(ctx context.Context, email DeploymentEmail) error {
	var htmlBuf, textBuf bytes.Buffer
	if err := htmlBody.Execute(&htmlBuf, email); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "render html email failed")
	}
	if err := textBody.Execute(&textBuf, email); err != nil {
		return appErr.Wrap(err, appErr.CodeInternal, "render text email failed")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.from)
	m.SetHeader("To", email.RecipientEmail)
	m.SetHeader("Subject", fmt.Sprintf("%s deployed successfully", email.ProjectName))
	m.SetBody("text/plain", textBuf.String())
	m.AddAlternative("text/html", htmlBuf.String())

	if err := ctx.Err(); err != nil {
		return appErr.Wrap(err, appErr.CodeDeadline, "send canceled")
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return appErr.Wrap(err, appErr.CodeExternal, "send deployment email failed")
	}
	return nil
}
