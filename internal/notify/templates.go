package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	goldmarkHTML "github.com/yuin/goldmark/renderer/html"

	"github.com/oakdental/frontdesk/internal/model"
)

const clinicName = "OAK Dental Clinic"

// markdown renders admin replies. Raw HTML in the input is escaped because
// WithUnsafe is not set.
var markdown = goldmark.New(
	goldmark.WithRendererOptions(
		goldmarkHTML.WithHardWraps(),
	),
)

var templates = template.Must(template.New("layout").Parse(`{{define "layout"}}<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2 style="color: #0D9488;">OAK Dental Clinic</h2>
  {{template "body" .}}
  <p style="color: #6B7280;">&copy; {{.Year}} OAK Dental Clinic. All rights reserved.</p>
</div>{{end}}`))

var (
	otpTemplate = mustBody(`
  <p>Your OTP for password reset is <strong>{{.Code}}</strong>.</p>
  <p>This OTP is valid for {{.Minutes}} minutes.</p>
  <p>If you did not request this, please ignore this email.</p>`)

	appointmentTemplate = mustBody(`
  <p>Dear {{.Name}},</p>
  <p>Your appointment has been <strong>{{.Status}}</strong>.</p>
  <h3>Appointment Details:</h3>
  <ul>
    <li><strong>Date:</strong> {{.Appointment.Date}}</li>
    <li><strong>Email:</strong> {{.Appointment.Email}}</li>
    <li><strong>Phone:</strong> {{.Appointment.Phone}}</li>
    <li><strong>Message:</strong> {{or .Appointment.Message "N/A"}}</li>
    {{- if .Cancelled}}
    <li><strong>Reason for Cancellation:</strong> {{.Reason}}</li>
    {{- end}}
  </ul>
  {{if .Cancelled}}<p>Please contact us to reschedule if needed.</p>{{else}}<p>We look forward to seeing you!</p>{{end}}`)

	replyTemplate = mustBody(`
  <p>Dear {{.Name}},</p>
  <p>Thank you for your message. Our response is below:</p>
  <blockquote style="border-left: 4px solid #0D9488; padding-left: 10px; margin: 10px 0;">
    {{.Reply}}
  </blockquote>
  <h3>Your Original Message:</h3>
  <p>{{.Original}}</p>
  <p>We value your feedback and look forward to assisting you further.</p>`)
)

func mustBody(body string) *template.Template {
	t := template.Must(templates.Clone())
	return template.Must(t.New("body").Parse(body))
}

func render(t *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

func orCustomer(name string) string {
	if strings.TrimSpace(name) == "" {
		return "Customer"
	}
	return name
}

// OTPEmail builds the password reset code email.
func OTPEmail(to, code string, ttl time.Duration) (Email, error) {
	html, err := render(otpTemplate, struct {
		Code    string
		Minutes int
		Year    int
	}{code, int(ttl.Minutes()), time.Now().Year()})
	if err != nil {
		return Email{}, err
	}
	return Email{To: to, Subject: "Your OTP for Password Reset", HTML: html}, nil
}

// OTPText is the SMS counterpart of OTPEmail.
func OTPText(code string, ttl time.Duration) string {
	return fmt.Sprintf("Your OAK Dental OTP is %s. Valid for %d minutes.", code, int(ttl.Minutes()))
}

// AppointmentEmail tells the submitter that appt was accepted or cancelled.
func AppointmentEmail(appt model.Appointment) (Email, error) {
	cancelled := appt.Status == model.StatusCancelled
	reason := ""
	if appt.Reason != nil {
		reason = *appt.Reason
	}
	html, err := render(appointmentTemplate, struct {
		Name        string
		Status      string
		Appointment model.Appointment
		Cancelled   bool
		Reason      string
		Year        int
	}{orCustomer(appt.Name), appt.Status, appt, cancelled, reason, time.Now().Year()})
	if err != nil {
		return Email{}, err
	}
	return Email{
		To:      appt.Email,
		Subject: fmt.Sprintf("%s - Appointment %s", clinicName, titleCase(appt.Status)),
		HTML:    html,
	}, nil
}

// AppointmentText is the SMS counterpart of AppointmentEmail.
func AppointmentText(appt model.Appointment) string {
	tail := "We look forward to seeing you!"
	if appt.Status == model.StatusCancelled {
		reason := ""
		if appt.Reason != nil {
			reason = *appt.Reason
		}
		tail = "Reason: " + reason
	}
	return fmt.Sprintf("%s: Your appointment on %s has been %s. %s", clinicName, appt.Date, appt.Status, tail)
}

// ReplyEmail answers a contact message. The reply is Markdown and the
// original message is quoted back as plain text.
func ReplyEmail(msg model.Message, reply string) (Email, error) {
	var rendered bytes.Buffer
	if err := markdown.Convert([]byte(reply), &rendered); err != nil {
		return Email{}, fmt.Errorf("render reply markdown: %w", err)
	}
	html, err := render(replyTemplate, struct {
		Name     string
		Reply    template.HTML
		Original string
		Year     int
	}{orCustomer(msg.FullName), template.HTML(rendered.String()), msg.Message, time.Now().Year()})
	if err != nil {
		return Email{}, err
	}
	return Email{To: msg.Email, Subject: "Response from " + clinicName, HTML: html}, nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
