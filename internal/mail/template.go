package mail

import (
	"bytes"
	"html/template"
	"time"
)

// displayDateLayout is how the event date appears in the email (dd-mm-yyyy).
const displayDateLayout = "02-01-2006"

// html/template escapes every field, so an event named "<script>" is
// rendered as text.
var confirmationTmpl = template.Must(template.New("confirmation").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #222;">
  <h2>Registration Confirmed</h2>
  <p>Hi {{.AttendeeName}},</p>
  <p>You are registered for <strong>{{.EventName}}</strong>.</p>
  <table cellpadding="4">
    <tr><td>Date</td><td>{{.Date}}</td></tr>
    <tr><td>Time</td><td>{{.Time}}</td></tr>
  </table>
  <p>See you there!</p>
</body>
</html>
`))

// RenderConfirmation returns the HTML body for c.
func RenderConfirmation(c Confirmation) (string, error) {
	view := c
	view.Date = displayDate(c.Date)
	view.Time = displayTime(c.Time)

	var buf bytes.Buffer
	if err := confirmationTmpl.Execute(&buf, view); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// displayDate turns yyyy-mm-dd into dd-mm-yyyy, leaving anything it cannot
// parse as it was.
func displayDate(s string) string {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		return s
	}
	return d.Format(displayDateLayout)
}

// displayTime normalises to zero-padded 24h hh:mm.
func displayTime(s string) string {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return s
	}
	return t.Format("15:04")
}
