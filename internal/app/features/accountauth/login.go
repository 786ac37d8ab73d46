// internal/app/features/accountauth/login.go
package accountauth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/audit"
	"github.com/dalemusser/stayhome/internal/app/store/ratelimit"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/authutil"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserData is the account summary returned with a login token.
type UserData struct {
	ProfileID primitive.ObjectID   `json:"profileId"`
	Email     string               `json:"email"`
	Name      string               `json:"name"`
	Role      string               `json:"role"`
	IsAdmin   bool                 `json:"isAdmin,omitempty"`
	Hostels   []primitive.ObjectID `json:"hostels,omitempty"`
}

// lockedMessage describes how long a locked-out login must wait.
func lockedMessage(until *time.Time) string {
	if until == nil {
		return "Too many failed login attempts. Please try again later."
	}
	remaining := time.Until(*until)
	if remaining > time.Minute {
		return fmt.Sprintf("Too many failed login attempts. Please try again in %d minute(s).", int(remaining.Minutes())+1)
	}
	return fmt.Sprintf("Too many failed login attempts. Please try again in %d second(s).", int(remaining.Seconds())+1)
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var creds authutil.Credentials
	if err := jsonutil.Decode(r, &creds); err != nil && !errors.Is(err, jsonutil.ErrEmptyBody) {
		jsonutil.BadRequest(w, "Invalid request body")
		return
	}
	creds = creds.Normalized()
	if !creds.Present() {
		jsonutil.BadRequest(w, authutil.ErrCredentialsRequired.Error())
		return
	}

	key := ratelimit.Key(string(h.opts.Kind), creds.Email)
	if h.limiter != nil {
		if st := h.limiter.Check(r.Context(), key); !st.Allowed {
			h.audit.LoginFailed(r, h.opts.Kind, primitive.NilObjectID, creds.Email, audit.EventLoginLockedOut, "rate limit exceeded")
			jsonutil.TooManyRequests(w, lockedMessage(st.LockedUntil))
			return
		}
	}
	fail := func() {
		if h.limiter != nil {
			h.limiter.RecordFailure(r.Context(), key)
		}
	}

	acct, err := h.accounts.GetByEmail(r.Context(), creds.Email)
	if errors.Is(err, accountstore.ErrNotFound) {
		fail()
		h.audit.LoginFailed(r, h.opts.Kind, primitive.NilObjectID, creds.Email, audit.EventLoginFailedNotFound, "email not found")
		jsonutil.Unauthorized(w, "Email not found")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "database error during login lookup", err)
		return
	}

	if !authutil.CheckPassword(creds.Password, acct.PasswordHash) {
		fail()
		h.audit.LoginFailed(r, h.opts.Kind, acct.ID, creds.Email, audit.EventLoginFailedPassword, "incorrect password")
		jsonutil.Unauthorized(w, "Incorrect password")
		return
	}

	roleName := ""
	if !acct.Role.IsZero() {
		role, err := h.roles.GetByID(r.Context(), acct.Role)
		if err != nil && !errors.Is(err, rolestore.ErrNotFound) {
			h.errLog.Fail(w, r, "role lookup failed during login", err)
			return
		}
		if role != nil {
			roleName = role.Name
		}
	}
	if !auth.RoleAllowed(h.opts.Kind, roleName) {
		h.audit.LoginFailed(r, h.opts.Kind, acct.ID, creds.Email, audit.EventLoginFailedRole, "invalid role "+roleName)
		jsonutil.Unauthorized(w, "Invalid user role")
		return
	}

	token, err := h.tokens.Issue(auth.Principal{ID: acct.ID, Email: acct.Email, Role: roleName, Kind: h.opts.Kind})
	if err != nil {
		h.errLog.Fail(w, r, "failed to sign token", err)
		return
	}
	if _, err := h.accounts.TouchLogin(r.Context(), acct.ID); err != nil {
		h.errLog.Log(r, "failed to record last login", err)
	}
	if h.limiter != nil {
		if err := h.limiter.Clear(r.Context(), key); err != nil {
			h.errLog.Log(r, "failed to clear login attempts", err)
		}
	}
	h.audit.LoginSuccess(r, h.opts.Kind, acct.ID, acct.Email)

	data := UserData{
		ProfileID: acct.ID,
		Email:     acct.Email,
		Name:      acct.Name,
		Role:      roleName,
		IsAdmin:   roleName == models.RoleAdmin,
	}
	if roleName == models.RoleHostelOwner {
		data.Hostels = acct.Hostels
		if data.Hostels == nil {
			data.Hostels = []primitive.ObjectID{}
		}
	}

	jsonutil.OK(w, map[string]any{
		"token":    token,
		"userData": data,
		"message":  "Login successful as " + roleName,
	})
}

// logout records the logout time. Tokens are stateless; the client drops
// its copy.
func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFrom(r)
	at, err := h.accounts.TouchLogout(r.Context(), p.ID)
	if errors.Is(err, accountstore.ErrNotFound) {
		h.notFound(w)
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to record logout", err)
		return
	}
	h.audit.Auth(r, h.opts.Kind, p.ID, audit.EventLogout, "", nil)
	jsonutil.OK(w, map[string]any{
		"message":    "Logged out successfully",
		"lastLogout": at,
	})
}
