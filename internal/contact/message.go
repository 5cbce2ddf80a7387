package contact

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
)

// Submission is one contact form entry.
type Submission struct {
	Name    string `json:"name" form:"name" binding:"required,max=200"`
	Email   string `json:"email" form:"email" binding:"required,email,max=320"`
	Phone   string `json:"phone" form:"phone" binding:"max=50"`
	Message string `json:"message" form:"message" binding:"required,max=10000"`
}

var bodyTmpl = template.Must(template.New("contact").Parse(`<h2>New Contact Form Submission</h2>
<p><strong>Name:</strong> {{.Name}}</p>
<p><strong>Email:</strong> {{.Email}}</p>
<p><strong>Phone:</strong> {{if .Phone}}{{.Phone}}{{else}}Not provided{{end}}</p>
<p><strong>Message:</strong></p>
<p>{{.Message}}</p>
<hr>
<p><em>This message was sent from the {{.Site}} contact form</em></p>
`))

// Render builds the notification mail for the site owner. User input is
// HTML-escaped by the template.
func Render(s Submission, to, site string) (Message, error) {
	var buf bytes.Buffer
	data := struct {
		Submission
		Site string
	}{s, site}
	if err := bodyTmpl.Execute(&buf, data); err != nil {
		return Message{}, fmt.Errorf("render contact mail: %w", err)
	}

	return Message{
		To:      to,
		ReplyTo: s.Email,
		Subject: "New Contact Form Submission from " + oneLine(s.Name),
		HTML:    buf.String(),
	}, nil
}

// oneLine keeps header values on a single line.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
