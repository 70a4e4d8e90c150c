package mailx

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

// CodePurpose selects the wording of a one-time code email.
type CodePurpose int

const (
	// PurposeLogin is the second step of a sign in.
	PurposeLogin CodePurpose = iota
	// PurposeVerifyAddress confirms ownership of the account's address.
	PurposeVerifyAddress
)

var codeTemplate = template.Must(template.New("code").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Subject}}</title></head>
<body style="font-family: Arial, sans-serif; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <p>{{.Intro}}</p>
  <p style="font-size: 28px; letter-spacing: 6px; font-weight: bold;">{{.Code}}</p>
  <p>This code expires in {{.Minutes}} minutes. If you did not request it, you can ignore this email.</p>
</body>
</html>`))

// CodeMessage renders the email carrying a one-time code.
func CodeMessage(to string, purpose CodePurpose, code string, ttl time.Duration) (Message, error) {
	data := struct {
		Subject string
		Intro   string
		Code    string
		Minutes int
	}{Code: code, Minutes: int(ttl.Round(time.Minute) / time.Minute)}

	switch purpose {
	case PurposeLogin:
		data.Subject = "Your sign-in code"
		data.Intro = "Use this code to finish signing in:"
	case PurposeVerifyAddress:
		data.Subject = "Verify your email address"
		data.Intro = "Use this code to verify your email address:"
	default:
		return Message{}, fmt.Errorf("mailx: unknown code purpose %d", purpose)
	}

	var html bytes.Buffer
	if err := codeTemplate.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("mailx: render code email: %w", err)
	}

	return Message{
		To:      to,
		Subject: data.Subject,
		Text:    fmt.Sprintf("%s %s\r\nThis code expires in %d minutes.", data.Intro, code, data.Minutes),
		HTML:    html.String(),
	}, nil
}
