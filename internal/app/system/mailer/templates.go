// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"html/template"
	"strconv"
	"strings"
)

// message is the content of one notification, rendered into both the plain
// text body and the shared HTML layout.
type message struct {
	AppName     string
	Subject     string
	Heading     string
	Greeting    string
	Paragraphs  []string
	Code        string // large one-time code block
	ButtonURL   string
	ButtonLabel string
	Notice      string // highlighted warning paragraph
	Footer      string
}

func (m message) text() string {
	var b strings.Builder
	if m.Greeting != "" {
		b.WriteString(m.Greeting + "\n\n")
	}
	for _, p := range m.Paragraphs {
		b.WriteString(p + "\n\n")
	}
	if m.Code != "" {
		b.WriteString("Your code: " + m.Code + "\n\n")
	}
	if m.ButtonURL != "" {
		b.WriteString(m.ButtonLabel + ":\n" + m.ButtonURL + "\n\n")
	}
	if m.Notice != "" {
		b.WriteString(m.Notice + "\n\n")
	}
	if m.Footer != "" {
		b.WriteString(m.Footer)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m message) email(to string) Email {
	var buf bytes.Buffer
	if err := layoutTmpl.Execute(&buf, m); err != nil {
		// The layout only ranges over strings; fall back to text-only mail.
		return Email{To: to, Subject: m.Subject, TextBody: m.text()}
	}
	return Email{To: to, Subject: m.Subject, TextBody: m.text(), HTMLBody: buf.String()}
}

func minutes(n int) string {
	if n == 1 {
		return "1 minute"
	}
	return strconv.Itoa(n) + " minutes"
}

/*─────────────────────────────────────────────────────────────────────────────*
| Account emails                                                              |
*─────────────────────────────────────────────────────────────────────────────*/

// OTP purposes, used for the subject line and wording.
const (
	OTPRegistration  = "registration"
	OTPPasswordReset = "password_reset"
	OTPEmailChange   = "email_change"
)

// OTPEmailData contains the data for a one-time code email.
type OTPEmailData struct {
	AppName   string
	Purpose   string
	Code      string
	ExpiryMin int
}

// OTPEmail builds the email carrying a one-time code.
func OTPEmail(to string, data OTPEmailData) Email {
	m := message{AppName: data.AppName, Code: data.Code}
	switch data.Purpose {
	case OTPPasswordReset:
		m.Subject = "Password Reset OTP"
		m.Heading = "Reset Your Password"
		m.Paragraphs = []string{"Use the code below to reset your " + data.AppName + " password."}
	case OTPEmailChange:
		m.Subject = "Email Change Verification"
		m.Heading = "Confirm Your New Email"
		m.Paragraphs = []string{"Use the code below to confirm this address for your " + data.AppName + " account."}
	default:
		m.Subject = "Registration OTP"
		m.Heading = "Verify Your Email"
		m.Paragraphs = []string{"Use the code below to finish creating your " + data.AppName + " account."}
	}
	m.Paragraphs = append(m.Paragraphs, "This code will expire in "+minutes(data.ExpiryMin)+".")
	m.Footer = "If you did not request this, you can safely ignore this email."
	return m.email(to)
}

// PasswordResetEmailData contains the data for a password reset link email.
type PasswordResetEmailData struct {
	AppName   string
	ResetURL  string
	ExpiryMin int
}

// PasswordResetEmail builds the reset-link email.
func PasswordResetEmail(to string, data PasswordResetEmailData) Email {
	return message{
		AppName: data.AppName,
		Subject: "Password Reset Request",
		Heading: "Reset Your Password",
		Paragraphs: []string{
			"You requested a password reset for your " + data.AppName + " account.",
			"This link will expire in " + minutes(data.ExpiryMin) + ".",
		},
		ButtonURL:   data.ResetURL,
		ButtonLabel: "Reset Password",
		Footer:      "If you didn't request this password reset, you can safely ignore this email. Your password will remain unchanged.",
	}.email(to)
}

// PasswordChangedEmailData contains the data for a password changed confirmation.
type PasswordChangedEmailData struct {
	AppName  string
	LoginURL string
	ByAdmin  bool
}

// PasswordChangedEmail builds the password-changed security notice.
func PasswordChangedEmail(to string, data PasswordChangedEmailData) Email {
	p := "Your " + data.AppName + " password has been changed."
	if data.ByAdmin {
		p = "An administrator has changed your " + data.AppName + " password."
	}
	return message{
		AppName:     data.AppName,
		Subject:     "Your password has been changed",
		Heading:     "Password Changed",
		Paragraphs:  []string{p},
		Notice:      "If you did NOT expect this change, your account may have been compromised. Please reset your password immediately.",
		ButtonURL:   data.LoginURL,
		ButtonLabel: "Go to Login",
		Footer:      "This is an automated security notification. Please do not reply to this email.",
	}.email(to)
}

// WelcomeEmailData contains the data for accounts created by an administrator.
type WelcomeEmailData struct {
	AppName       string
	UserName      string
	Role          string
	LoginURL      string
	NeedsApproval bool
}

// WelcomeEmail builds the welcome email for admin-created accounts.
func WelcomeEmail(to string, data WelcomeEmailData) Email {
	name := data.UserName
	if name == "" {
		name = "there"
	}
	paras := []string{"An account has been created for you on " + data.AppName + " with the role of " + data.Role + "."}
	if data.NeedsApproval {
		paras = append(paras, "Your account will be usable for listing hostels once an administrator approves it.")
	}
	return message{
		AppName:     data.AppName,
		Subject:     "Welcome to " + data.AppName,
		Heading:     "Welcome!",
		Greeting:    "Hello " + name + ",",
		Paragraphs:  paras,
		ButtonURL:   data.LoginURL,
		ButtonLabel: "Log in",
		Footer:      "If you have any questions, please contact the administrator.",
	}.email(to)
}

// RoleChangedEmailData contains the data for a role change notification.
type RoleChangedEmailData struct {
	AppName  string
	UserName string
	OldRole  string
	NewRole  string
	LoginURL string
}

// RoleChangedEmail builds the role change notification.
func RoleChangedEmail(to string, data RoleChangedEmailData) Email {
	return message{
		AppName:  data.AppName,
		Subject:  "Your account role has been updated",
		Heading:  "Role Updated",
		Greeting: "Hello " + data.UserName + ",",
		Paragraphs: []string{
			"Your role on " + data.AppName + " has been changed from " + data.OldRole + " to " + data.NewRole + ".",
			"Please sign in again to continue with your new access.",
		},
		ButtonURL:   data.LoginURL,
		ButtonLabel: "Go to Login",
	}.email(to)
}

// AccountDeletedEmailData contains the data for an account removal notice.
type AccountDeletedEmailData struct {
	AppName  string
	UserName string
}

// AccountDeletedEmail builds the account deletion notice.
func AccountDeletedEmail(to string, data AccountDeletedEmailData) Email {
	return message{
		AppName:    data.AppName,
		Subject:    "Your account has been removed",
		Heading:    "Account Removed",
		Greeting:   "Hello " + data.UserName + ",",
		Paragraphs: []string{"Your " + data.AppName + " account has been deleted by an administrator."},
		Footer:     "If you believe this was done in error, please contact the administrator.",
	}.email(to)
}

// OwnerApprovedEmailData contains the data for an owner approval notice.
type OwnerApprovedEmailData struct {
	AppName  string
	UserName string
	LoginURL string
}

// OwnerApprovedEmail tells an owner their account was approved.
func OwnerApprovedEmail(to string, data OwnerApprovedEmailData) Email {
	return message{
		AppName:     data.AppName,
		Subject:     "Your owner account has been approved",
		Heading:     "Account Approved",
		Greeting:    "Hello " + data.UserName + ",",
		Paragraphs:  []string{"Your hostel owner account on " + data.AppName + " has been approved. You can now list hostels."},
		ButtonURL:   data.LoginURL,
		ButtonLabel: "Log in",
	}.email(to)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Visit emails                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// VisitEmailData describes a hostel visit for owner and student notices.
type VisitEmailData struct {
	AppName     string
	StudentName string
	OwnerName   string
	HostelName  string
	VisitDate   string
	VisitTime   string
}

func (d VisitEmailData) when() string {
	s := strings.TrimSpace(d.VisitDate + " " + d.VisitTime)
	if s == "" {
		return "a time to be confirmed"
	}
	return s
}

// VisitRequestedEmail tells an owner a student asked to visit.
func VisitRequestedEmail(to string, data VisitEmailData) Email {
	return message{
		AppName:  data.AppName,
		Subject:  "New visit request for " + data.HostelName,
		Heading:  "New Visit Request",
		Greeting: "Hello " + data.OwnerName + ",",
		Paragraphs: []string{
			data.StudentName + " would like to visit " + data.HostelName + " on " + data.when() + ".",
			"Open your dashboard to accept or reject the request.",
		},
	}.email(to)
}

// VisitAcceptedEmail tells a student their visit was accepted.
func VisitAcceptedEmail(to string, data VisitEmailData) Email {
	return message{
		AppName:    data.AppName,
		Subject:    "Visit request accepted",
		Heading:    "Visit Accepted",
		Greeting:   "Hello " + data.StudentName + ",",
		Paragraphs: []string{"Your visit to " + data.HostelName + " on " + data.when() + " has been accepted by the owner."},
	}.email(to)
}

// VisitRejectedEmail tells a student their visit was rejected.
func VisitRejectedEmail(to string, data VisitEmailData) Email {
	return message{
		AppName:  data.AppName,
		Subject:  "Visit request rejected",
		Heading:  "Visit Rejected",
		Greeting: "Hello " + data.StudentName + ",",
		Paragraphs: []string{
			"Unfortunately your visit request for " + data.HostelName + " was rejected.",
			"You can request another time or explore other hostels in your wishlist.",
		},
	}.email(to)
}

// VisitCompletedEmail thanks a student after a completed visit.
func VisitCompletedEmail(to string, data VisitEmailData) Email {
	return message{
		AppName:    data.AppName,
		Subject:    "Visit completed",
		Heading:    "Thanks for Visiting",
		Greeting:   "Hello " + data.StudentName + ",",
		Paragraphs: []string{"Your visit to " + data.HostelName + " has been marked as completed. You can now take admission from your dashboard."},
	}.email(to)
}

// NotInterestedEmail tells an owner a student is no longer interested.
func NotInterestedEmail(to string, data VisitEmailData) Email {
	return message{
		AppName:    data.AppName,
		Subject:    "Student not interested in " + data.HostelName,
		Heading:    "Student Not Interested",
		Greeting:   "Hello " + data.OwnerName + ",",
		Paragraphs: []string{data.StudentName + " has marked " + data.HostelName + " as not interested and removed it from their wishlist."},
	}.email(to)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Layout                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

var layoutTmpl = template.Must(template.New("layout").Parse(`<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <meta name="viewport" content="width=device-width, initial-scale=1.0">
  <title>{{.Subject}}</title>
</head>
<body style="margin: 0; padding: 0; font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif; background-color: #f4f4f5;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="background-color: #f4f4f5;">
    <tr>
      <td align="center" style="padding: 40px 20px;">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; box-shadow: 0 1px 3px rgba(0,0,0,0.1);">
          <tr>
            <td style="padding: 32px 32px 24px 32px; text-align: center; border-bottom: 1px solid #e4e4e7;">
              <h1 style="margin: 0; font-size: 24px; font-weight: 600; color: #18181b;">{{.AppName}}</h1>
            </td>
          </tr>
          <tr>
            <td style="padding: 32px;">
              <h2 style="margin: 0 0 16px 0; font-size: 20px; font-weight: 600; color: #18181b;">{{.Heading}}</h2>
              {{- if .Greeting}}
              <p style="margin: 0 0 16px 0; font-size: 15px; line-height: 1.6; color: #52525b;">{{.Greeting}}</p>
              {{- end}}
              {{- range .Paragraphs}}
              <p style="margin: 0 0 16px 0; font-size: 15px; line-height: 1.6; color: #52525b;">{{.}}</p>
              {{- end}}
              {{- if .Code}}
              <div style="margin: 8px 0 24px 0; padding: 16px; background-color: #f4f4f5; border-radius: 6px; text-align: center; font-size: 32px; font-weight: 700; letter-spacing: 8px; color: #18181b;">{{.Code}}</div>
              {{- end}}
              {{- if .Notice}}
              <div style="padding: 16px; background-color: #fef2f2; border-radius: 6px; border-left: 4px solid #ef4444; margin-bottom: 24px;">
                <p style="margin: 0; font-size: 14px; line-height: 1.6; color: #991b1b;">{{.Notice}}</p>
              </div>
              {{- end}}
              {{- if .ButtonURL}}
              <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
                <tr>
                  <td align="center" style="padding: 8px 0 24px 0;">
                    <a href="{{.ButtonURL}}" style="display: inline-block; padding: 14px 32px; background-color: #4f46e5; color: #ffffff; text-decoration: none; font-size: 15px; font-weight: 600; border-radius: 6px;">{{.ButtonLabel}}</a>
                  </td>
                </tr>
              </table>
              {{- end}}
            </td>
          </tr>
          {{- if or .Footer .ButtonURL}}
          <tr>
            <td style="padding: 24px 32px; background-color: #fafafa; border-top: 1px solid #e4e4e7; border-radius: 0 0 8px 8px;">
              {{- if .Footer}}
              <p style="margin: 0 0 8px 0; font-size: 12px; color: #a1a1aa; text-align: center;">{{.Footer}}</p>
              {{- end}}
              {{- if .ButtonURL}}
              <p style="margin: 0; font-size: 12px; color: #4f46e5; text-align: center; word-break: break-all;">{{.ButtonURL}}</p>
              {{- end}}
            </td>
          </tr>
          {{- end}}
        </table>
      </td>
    </tr>
  </table>
</body>
</html>`))
