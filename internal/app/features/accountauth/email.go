// internal/app/features/accountauth/email.go
package accountauth

import (
	"errors"
	"net/http"
	"strings"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/audit"
	otpstore "github.com/dalemusser/stayhome/internal/app/store/otp"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/inputval"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/app/system/normalize"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// emailResult writes the {success, message} envelope the email change
// endpoints use. Failures also carry "error" for older clients.
func emailResult(w http.ResponseWriter, status int, msg string) {
	body := map[string]any{"success": status < 400, "message": msg}
	if status >= 400 {
		body["error"] = msg
	}
	jsonutil.JSON(w, status, body)
}

// targetAccount resolves profileId to an account the caller may modify:
// their own, or anyone's for an admin.
func (h *Handler) targetAccount(w http.ResponseWriter, r *http.Request, profileID string) *models.AccountSummary {
	id, err := primitive.ObjectIDFromHex(strings.TrimSpace(profileID))
	if err != nil {
		emailResult(w, http.StatusBadRequest, "Invalid profile id")
		return nil
	}
	p, _ := auth.PrincipalFrom(r)
	if !p.Is(id) && !p.IsAdmin() {
		emailResult(w, http.StatusForbidden, "You can only change your own email")
		return nil
	}
	acct, err := h.accounts.GetByID(r.Context(), id)
	if errors.Is(err, accountstore.ErrNotFound) {
		emailResult(w, http.StatusNotFound, h.opts.Kind.Label()+" not found")
		return nil
	}
	if err != nil {
		h.errLog.Fail(w, r, "account lookup failed", err)
		return nil
	}
	return acct
}

type sendEmailOTPRequest struct {
	ProfileID string `json:"profileId"`
	NewEmail  string `json:"newEmail"`
}

// sendEmailOTP emails a code to the new address; the change happens when
// the code is confirmed.
func (h *Handler) sendEmailOTP(w http.ResponseWriter, r *http.Request) {
	var req sendEmailOTPRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		emailResult(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	acct := h.targetAccount(w, r, req.ProfileID)
	if acct == nil {
		return
	}

	newEmail := normalize.Email(req.NewEmail)
	if !inputval.IsValidEmail(newEmail) {
		emailResult(w, http.StatusBadRequest, "Please enter a valid email address.")
		return
	}
	taken, err := h.accounts.EmailExists(r.Context(), newEmail)
	if err != nil {
		h.errLog.Fail(w, r, "email lookup failed", err)
		return
	}
	if taken {
		emailResult(w, http.StatusBadRequest, "Email already in use")
		return
	}

	code, err := h.otps.Issue(r.Context(), otpstore.IssueInput{
		Purpose:   otpstore.PurposeEmailChange,
		Kind:      h.opts.Kind,
		AccountID: acct.ID,
		Email:     acct.Email,
		NewEmail:  newEmail,
		TTL:       h.opts.EmailChangeExpiry,
	})
	if err != nil {
		h.errLog.Fail(w, r, "failed to issue email change code", err)
		return
	}
	if err := h.mail.Send(mailer.OTPEmail(newEmail, mailer.OTPEmailData{
		AppName:   h.opts.AppName,
		Purpose:   mailer.OTPEmailChange,
		Code:      code.Code,
		ExpiryMin: int(h.opts.EmailChangeExpiry.Minutes()),
	})); err != nil {
		h.errLog.Log(r, "failed to send email change code", err)
		emailResult(w, http.StatusInternalServerError, "Internal Server Error")
		return
	}

	emailResult(w, http.StatusOK, "OTP sent to new email successfully")
}

type verifyEmailOTPRequest struct {
	ProfileID string `json:"profileId"`
	OTP       string `json:"otp"`
}

func (h *Handler) verifyEmailOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailOTPRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		emailResult(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	acct := h.targetAccount(w, r, req.ProfileID)
	if acct == nil {
		return
	}

	code, err := h.otps.Check(r.Context(), otpstore.PurposeEmailChange, h.opts.Kind, acct.ID, strings.TrimSpace(req.OTP))
	switch {
	case errors.Is(err, otpstore.ErrNoPending):
		emailResult(w, http.StatusBadRequest, "No new email address found")
		return
	case errors.Is(err, otpstore.ErrInvalidCode):
		h.audit.Auth(r, h.opts.Kind, acct.ID, audit.EventOTPFailed, "invalid", nil)
		emailResult(w, http.StatusUnauthorized, "Invalid OTP")
		return
	case errors.Is(err, otpstore.ErrExpiredCode):
		h.audit.Auth(r, h.opts.Kind, acct.ID, audit.EventOTPFailed, "expired", nil)
		emailResult(w, http.StatusUnauthorized, "OTP has expired")
		return
	case err != nil:
		h.errLog.Fail(w, r, "email change code check failed", err)
		return
	}
	if code.NewEmail == "" {
		emailResult(w, http.StatusBadRequest, "No new email address found")
		return
	}

	if err := h.accounts.SetEmail(r.Context(), acct.ID, code.NewEmail); err != nil {
		if errors.Is(err, accountstore.ErrDuplicateEmail) {
			emailResult(w, http.StatusBadRequest, "Email already in use")
			return
		}
		h.errLog.Fail(w, r, "failed to change email", err)
		return
	}

	h.audit.Auth(r, h.opts.Kind, acct.ID, audit.EventEmailChanged, "", map[string]string{
		"old_email": acct.Email,
		"new_email": code.NewEmail,
	})
	emailResult(w, http.StatusOK, "Email changed successfully")
}
