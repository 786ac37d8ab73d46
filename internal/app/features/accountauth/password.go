// internal/app/features/accountauth/password.go
package accountauth

import (
	"errors"
	"net/http"
	"strings"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/audit"
	otpstore "github.com/dalemusser/stayhome/internal/app/store/otp"
	"github.com/dalemusser/stayhome/internal/app/store/passwordreset"
	"github.com/dalemusser/stayhome/internal/app/system/authutil"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/app/system/normalize"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const invalidResetToken = "Password reset token is invalid or has expired"

type emailRequest struct {
	Email string `json:"email"`
}

// lookupByEmail loads the account for an email in the request body,
// answering 400/404/500 itself when it returns nil.
func (h *Handler) lookupByEmail(w http.ResponseWriter, r *http.Request, email string) *models.AccountSummary {
	email = normalize.Email(email)
	if email == "" {
		jsonutil.BadRequest(w, "Email is required")
		return nil
	}
	acct, err := h.accounts.GetByEmail(r.Context(), email)
	if errors.Is(err, accountstore.ErrNotFound) {
		h.notFound(w)
		return nil
	}
	if err != nil {
		h.errLog.Fail(w, r, "account lookup failed", err)
		return nil
	}
	return acct
}

// setPassword stores hash and sends the changed-password notice.
func (h *Handler) setPassword(w http.ResponseWriter, r *http.Request, id primitive.ObjectID, email, hash string) bool {
	if err := h.accounts.SetPassword(r.Context(), id, hash); err != nil {
		if errors.Is(err, accountstore.ErrNotFound) {
			h.notFound(w)
			return false
		}
		h.errLog.Fail(w, r, "failed to update password", err)
		return false
	}
	h.audit.Auth(r, h.opts.Kind, id, audit.EventPasswordChanged, "", nil)
	mailer.Notify(h.mail, h.logger, mailer.PasswordChangedEmail(email, mailer.PasswordChangedEmailData{
		AppName:  h.opts.AppName,
		LoginURL: h.opts.FrontendURL + "/login",
	}))
	return true
}

// forgotPassword emails a one-time code for resetting the password.
func (h *Handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	_ = jsonutil.Decode(r, &req)
	acct := h.lookupByEmail(w, r, req.Email)
	if acct == nil {
		return
	}

	code, err := h.otps.Issue(r.Context(), otpstore.IssueInput{
		Purpose:   otpstore.PurposePasswordReset,
		Kind:      h.opts.Kind,
		AccountID: acct.ID,
		Email:     acct.Email,
		TTL:       h.opts.OTPExpiry,
	})
	if err != nil {
		h.errLog.Fail(w, r, "failed to issue reset code", err)
		return
	}
	if err := h.mail.Send(mailer.OTPEmail(acct.Email, mailer.OTPEmailData{
		AppName:   h.opts.AppName,
		Purpose:   mailer.OTPPasswordReset,
		Code:      code.Code,
		ExpiryMin: int(h.opts.OTPExpiry.Minutes()),
	})); err != nil {
		h.errLog.Log(r, "failed to send reset code", err)
		jsonutil.InternalError(w, "Something went wrong")
		return
	}

	h.audit.Auth(r, h.opts.Kind, acct.ID, audit.EventPasswordResetSent, "", map[string]string{"method": "otp"})
	jsonutil.Message(w, http.StatusOK, "OTP sent to your email")
}

type resetOwnRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

// resetOwnPassword sets a new password after checking the emailed code.
// The password is validated first so a weak choice does not burn the code.
func (h *Handler) resetOwnPassword(w http.ResponseWriter, r *http.Request) {
	var req resetOwnRequest
	_ = jsonutil.Decode(r, &req)
	acct := h.lookupByEmail(w, r, req.Email)
	if acct == nil {
		return
	}

	hash, err := authutil.ValidateAndHash(req.NewPassword)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	_, err = h.otps.Check(r.Context(), otpstore.PurposePasswordReset, h.opts.Kind, acct.ID, strings.TrimSpace(req.OTP))
	switch {
	case errors.Is(err, otpstore.ErrExpiredCode):
		h.audit.Auth(r, h.opts.Kind, acct.ID, audit.EventOTPFailed, "expired", nil)
		jsonutil.BadRequest(w, "OTP has expired")
		return
	case errors.Is(err, otpstore.ErrInvalidCode), errors.Is(err, otpstore.ErrNoPending):
		h.audit.Auth(r, h.opts.Kind, acct.ID, audit.EventOTPFailed, "invalid", nil)
		jsonutil.BadRequest(w, "Invalid OTP")
		return
	case err != nil:
		h.errLog.Fail(w, r, "reset code check failed", err)
		return
	}

	if h.setPassword(w, r, acct.ID, acct.Email, hash) {
		jsonutil.Message(w, http.StatusOK, "Password changed successfully")
	}
}

// requestResetLink emails a single-use reset link.
func (h *Handler) requestResetLink(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	_ = jsonutil.Decode(r, &req)
	acct := h.lookupByEmail(w, r, req.Email)
	if acct == nil {
		return
	}

	reset, err := h.resets.Create(r.Context(), h.opts.Kind, acct.ID, acct.Email)
	if err != nil {
		h.errLog.Fail(w, r, "failed to create reset token", err)
		return
	}
	if err := h.mail.Send(mailer.PasswordResetEmail(acct.Email, mailer.PasswordResetEmailData{
		AppName:   h.opts.AppName,
		ResetURL:  h.opts.BaseURL + "/reset?token=" + reset.Token,
		ExpiryMin: int(h.opts.ResetTokenExpiry.Minutes()),
	})); err != nil {
		h.errLog.Fail(w, r, "failed to send reset link", err)
		return
	}

	h.audit.Auth(r, h.opts.Kind, acct.ID, audit.EventPasswordResetSent, "", map[string]string{"method": "link"})
	resp := map[string]any{"message": "Password reset email sent"}
	if h.opts.DevMode {
		resp["token"] = reset.Token
	}
	jsonutil.OK(w, resp)
}

// loadReset resolves the {token} URL param to a reset of this handler's kind.
func (h *Handler) loadReset(w http.ResponseWriter, r *http.Request) *passwordreset.Reset {
	reset, err := h.resets.VerifyToken(r.Context(), chi.URLParam(r, "token"))
	if errors.Is(err, passwordreset.ErrInvalidToken) || (err == nil && reset.Kind != h.opts.Kind) {
		jsonutil.BadRequest(w, invalidResetToken)
		return nil
	}
	if err != nil {
		h.errLog.Fail(w, r, "reset token lookup failed", err)
		return nil
	}
	return reset
}

func (h *Handler) verifyResetToken(w http.ResponseWriter, r *http.Request) {
	if h.loadReset(w, r) != nil {
		jsonutil.Message(w, http.StatusOK, "Token is valid")
	}
}

type resetWithTokenRequest struct {
	Password string `json:"password"`
}

func (h *Handler) resetWithToken(w http.ResponseWriter, r *http.Request) {
	var req resetWithTokenRequest
	if err := jsonutil.Decode(r, &req); err != nil && !errors.Is(err, jsonutil.ErrEmptyBody) {
		jsonutil.BadRequest(w, "Invalid request body")
		return
	}

	reset := h.loadReset(w, r)
	if reset == nil {
		return
	}
	hash, err := authutil.ValidateAndHash(req.Password)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if err := h.resets.Consume(r.Context(), reset.ID); err != nil {
		if errors.Is(err, passwordreset.ErrInvalidToken) {
			jsonutil.BadRequest(w, invalidResetToken)
			return
		}
		h.errLog.Fail(w, r, "failed to consume reset token", err)
		return
	}
	if h.setPassword(w, r, reset.AccountID, reset.Email, hash) {
		jsonutil.Message(w, http.StatusOK, "Password has been updated")
	}
}
