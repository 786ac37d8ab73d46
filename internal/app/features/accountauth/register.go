// internal/app/features/accountauth/register.go
package accountauth

import (
	"errors"
	"net/http"
	"time"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/audit"
	otpstore "github.com/dalemusser/stayhome/internal/app/store/otp"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/authutil"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/htmlsanitize"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/app/system/normalize"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// register starts a registration: the account is only created once the
// emailed code is confirmed.
func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	creds := authutil.Credentials{Email: f["email"], Password: f["password"]}.Normalized()
	if !creds.Present() {
		jsonutil.BadRequest(w, authutil.ErrCredentialsRequired.Error())
		return
	}
	hash, err := authutil.ValidateNew(creds)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}

	exists, err := h.accounts.EmailExists(r.Context(), creds.Email)
	if err != nil {
		h.errLog.Fail(w, r, "registration email lookup failed", err)
		return
	}
	if exists {
		jsonutil.BadRequest(w, "Email already exists")
		return
	}

	code, err := otpstore.GenerateCode()
	if err != nil {
		h.errLog.Fail(w, r, "failed to generate registration code", err)
		return
	}

	profile := make(map[string]string)
	for _, k := range h.opts.Kind.ProfileFields() {
		if v := htmlsanitize.Text(f[k]); v != "" {
			profile[k] = v
		}
	}

	p := auth.PendingRegistration{
		Kind:         h.opts.Kind,
		Email:        creds.Email,
		PasswordHash: hash,
		Profile:      profile,
		OTP:          code,
		ExpiresAt:    time.Now().Add(h.opts.OTPExpiry),
	}
	if err := h.pending.Save(w, r, p); err != nil {
		h.errLog.Fail(w, r, "failed to save pending registration", err)
		return
	}

	if err := h.mail.Send(mailer.OTPEmail(creds.Email, mailer.OTPEmailData{
		AppName:   h.opts.AppName,
		Purpose:   mailer.OTPRegistration,
		Code:      code,
		ExpiryMin: int(h.opts.OTPExpiry.Minutes()),
	})); err != nil {
		h.errLog.Log(r, "failed to send registration code", err)
		jsonutil.InternalError(w, "Registration failed")
		return
	}

	h.audit.Auth(r, h.opts.Kind, primitive.NilObjectID, audit.EventRegistrationStarted, "", map[string]string{"email": creds.Email})
	jsonutil.OK(w, map[string]any{
		"message": "Verification code sent to your email",
		"email":   creds.Email,
	})
}

type verifyRegistrationRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// verifyRegistration confirms the emailed code and creates the account with
// the kind's system role.
func (h *Handler) verifyRegistration(w http.ResponseWriter, r *http.Request) {
	var req verifyRegistrationRequest
	if err := jsonutil.Decode(r, &req); err != nil {
		jsonutil.BadRequest(w, "Email and OTP are required")
		return
	}

	p, ok := h.pending.Load(r, h.opts.Kind)
	if !ok {
		jsonutil.BadRequest(w, "No pending registration found. Please register again.")
		return
	}

	switch err := p.Check(normalize.Email(req.Email), req.OTP, time.Now()); {
	case errors.Is(err, auth.ErrRegistrationEmailMismatch):
		jsonutil.BadRequest(w, "Email mismatch. Please use the same email used for registration.")
		return
	case errors.Is(err, auth.ErrInvalidOTP):
		jsonutil.Unauthorized(w, "Invalid OTP")
		return
	case errors.Is(err, auth.ErrOTPExpired):
		jsonutil.Unauthorized(w, "OTP has expired")
		return
	}

	roleName := h.opts.Kind.SystemRole()
	role, err := h.roles.GetByName(r.Context(), roleName)
	if err != nil {
		h.errLog.Log(r, "system role missing", err, zap.String("role", roleName))
		jsonutil.InternalError(w, "Role not configured")
		return
	}

	profile := bson.M{}
	for k, v := range p.Profile {
		profile[k] = v
	}
	id, err := h.accounts.Create(r.Context(), models.Account{
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		Role:         role.ID,
		IsApproved:   true,
	}, profile)
	if errors.Is(err, accountstore.ErrDuplicateEmail) {
		h.pending.Clear(w, r, h.opts.Kind)
		jsonutil.BadRequest(w, "Email already exists")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to create account", err)
		return
	}

	h.pending.Clear(w, r, h.opts.Kind)
	h.audit.Auth(r, h.opts.Kind, id, audit.EventRegistrationCompleted, "", nil)

	jsonutil.Created(w, map[string]any{
		"message": "Registration completed successfully",
		string(h.opts.Kind): map[string]any{
			"_id":   id,
			"email": p.Email,
			"role":  roleName,
		},
	})
}
