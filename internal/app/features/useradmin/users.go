package useradmin

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"time"

	accountstore "github.com/dalemusser/stayhome/internal/app/store/accounts"
	"github.com/dalemusser/stayhome/internal/app/store/audit"
	rolestore "github.com/dalemusser/stayhome/internal/app/store/roles"
	"github.com/dalemusser/stayhome/internal/app/system/auth"
	"github.com/dalemusser/stayhome/internal/app/system/authutil"
	"github.com/dalemusser/stayhome/internal/app/system/authz"
	"github.com/dalemusser/stayhome/internal/app/system/formutil"
	"github.com/dalemusser/stayhome/internal/app/system/inputval"
	"github.com/dalemusser/stayhome/internal/app/system/jsonutil"
	"github.com/dalemusser/stayhome/internal/app/system/mailer"
	"github.com/dalemusser/stayhome/internal/app/system/normalize"
	"github.com/dalemusser/stayhome/internal/app/system/txn"
	"github.com/dalemusser/stayhome/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const noRole = "No Role Assigned"

type studentInfo struct {
	College           string `json:"college"`
	Year              string `json:"year"`
	Class             string `json:"class"`
	Gender            string `json:"gender"`
	Number            string `json:"number"`
	WishlistSubmitted bool   `json:"wishlistSubmitted"`
	WishlistApproved  bool   `json:"wishlistApproved"`
	WishlistCount     int    `json:"wishlistCount"`
}

type ownerInfo struct {
	HostelCount int    `json:"hostelCount"`
	Address     string `json:"address"`
	Gender      string `json:"gender"`
	Number      string `json:"number"`
}

// userRow is one entry of the combined user list.
type userRow struct {
	ID         primitive.ObjectID  `json:"id"`
	Email      string              `json:"email"`
	Name       string              `json:"name"`
	UserType   models.Kind         `json:"userType"`
	RoleID     *primitive.ObjectID `json:"roleId"`
	RoleName   string              `json:"roleName"`
	IsApproved bool                `json:"isApproved"`
	LastLogin  *time.Time          `json:"lastLogin"`
	CreatedAt  time.Time           `json:"createdAt"`
	*studentInfo
	*ownerInfo
}

type roleRef struct {
	ID          primitive.ObjectID `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description"`
}

// createdAt falls back to the id timestamp for documents without one.
func createdAt(a models.Account) time.Time {
	if !a.CreatedAt.IsZero() {
		return a.CreatedAt
	}
	return a.ID.Timestamp()
}

func newRow(a models.Account, name string, kind models.Kind, roles map[primitive.ObjectID]models.Role) userRow {
	row := userRow{
		ID:         a.ID,
		Email:      a.Email,
		Name:       name,
		UserType:   kind,
		RoleName:   noRole,
		IsApproved: a.IsApproved,
		LastLogin:  a.LastLogin,
		CreatedAt:  createdAt(a),
	}
	if role, ok := roles[a.Role]; ok {
		id := role.ID
		row.RoleID = &id
		row.RoleName = role.Name
	}
	return row
}

// listUsers returns students and owners in one list, newest first.
func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	byID, roles, err := h.roleNames(r)
	if err != nil {
		h.errLog.Fail(w, r, "failed to list roles", err)
		return
	}
	students, err := h.students.List(ctx)
	if err != nil {
		h.errLog.Fail(w, r, "failed to list students", err)
		return
	}
	owners, err := h.owners.List(ctx)
	if err != nil {
		h.errLog.Fail(w, r, "failed to list owners", err)
		return
	}

	users := make([]userRow, 0, len(students)+len(owners))
	for _, st := range students {
		row := newRow(st.Account, st.Name, models.KindStudent, byID)
		row.studentInfo = &studentInfo{
			College:           st.College,
			Year:              st.Year,
			Class:             st.Class,
			Gender:            st.Gender,
			Number:            st.Number,
			WishlistSubmitted: st.WishlistSubmitted,
			WishlistApproved:  st.WishlistApproved,
			WishlistCount:     len(st.Wishlist),
		}
		users = append(users, row)
	}
	for _, o := range owners {
		row := newRow(o.Account, o.Name, models.KindOwner, byID)
		row.ownerInfo = &ownerInfo{
			HostelCount: len(o.Hostels),
			Address:     o.Address,
			Gender:      o.Gender,
			Number:      o.Number,
		}
		users = append(users, row)
	}
	sort.SliceStable(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })

	refs := make([]roleRef, 0, len(roles))
	for _, role := range roles {
		refs = append(refs, roleRef{ID: role.ID, Name: role.Name, Description: role.Description})
	}
	jsonutil.OK(w, map[string]any{
		"success":  true,
		"total":    len(users),
		"students": len(students),
		"owners":   len(owners),
		"roles":    refs,
		"users":    users,
	})
}

// userSummary is the account returned after a create or role change.
type userSummary struct {
	ID            primitive.ObjectID `json:"_id"`
	Email         string             `json:"email"`
	Name          string             `json:"name,omitempty"`
	UserType      models.Kind        `json:"userType"`
	Role          primitive.ObjectID `json:"role"`
	RoleName      string             `json:"roleName"`
	IsApproved    bool               `json:"isApproved"`
	NeedsApproval bool               `json:"needsApproval"`
}

// lookupRole resolves a role by name. It writes 400 "Invalid role" when
// the name is unknown.
func (h *Handler) lookupRole(w http.ResponseWriter, r *http.Request, name string) *models.Role {
	role, err := h.roles.GetByName(r.Context(), models.CanonicalRoleName(name))
	if errors.Is(err, rolestore.ErrNotFound) {
		jsonutil.BadRequest(w, "Invalid role")
		return nil
	}
	if err != nil {
		h.errLog.Fail(w, r, "role lookup failed", err, zap.String("role", name))
		return nil
	}
	return role
}

// accountInput holds the optional email, password and profile fields sent
// with a create or role change request.
type accountInput struct {
	email   string
	hash    string
	profile bson.M
}

// readAccountInput validates the shared account fields for kind. It writes
// 400 and returns false on bad input.
func readAccountInput(w http.ResponseWriter, f formutil.Fields, kind models.Kind) (accountInput, bool) {
	in := accountInput{profile: f.Profile(kind.ProfileFields())}
	if e := f.Get("email"); e != "" {
		in.email = normalize.Email(e)
		if !inputval.IsValidEmail(in.email) {
			jsonutil.BadRequest(w, "Invalid email format")
			return in, false
		}
	}
	if pw := f.Get("password"); pw != "" {
		hash, err := authutil.ValidateAndHash(pw)
		if err != nil {
			jsonutil.BadRequest(w, err.Error())
			return in, false
		}
		in.hash = hash
	}
	if g, ok := in.profile["gender"].(string); ok && g != "" && !models.IsValidGender(g) {
		jsonutil.BadRequest(w, "Gender must be one of male, female or other")
		return in, false
	}
	return in, true
}

// createUser adds a student or owner account. Owners start unapproved.
func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if f.Get("email") == "" || f.Get("password") == "" || f.Get("roleName") == "" {
		jsonutil.BadRequest(w, "Email, password and roleName are required")
		return
	}
	role := h.lookupRole(w, r, f.Get("roleName"))
	if role == nil {
		return
	}
	kind := models.KindForRole(role.Name)
	if kind == "" {
		jsonutil.BadRequest(w, "Invalid role for user creation")
		return
	}
	in, ok := readAccountInput(w, f, kind)
	if !ok {
		return
	}

	acct := models.Account{
		Email:        in.email,
		PasswordHash: in.hash,
		Role:         role.ID,
		IsApproved:   kind != models.KindOwner,
	}
	id, err := h.accounts(kind).Create(r.Context(), acct, in.profile)
	if errors.Is(err, accountstore.ErrDuplicateEmail) {
		jsonutil.BadRequest(w, "Email already exists in "+string(kind)+" database")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to create user", err)
		return
	}

	p, _ := auth.PrincipalFrom(r)
	h.audit.Admin(r, p.ID, id, audit.EventUserCreated, map[string]string{
		"email": in.email,
		"role":  role.Name,
	})
	name, _ := in.profile["name"].(string)
	h.notify.Notify(mailer.WelcomeEmail(in.email, mailer.WelcomeEmailData{
		AppName:       h.notify.AppName,
		UserName:      name,
		Role:          role.Name,
		LoginURL:      h.notify.LoginURL,
		NeedsApproval: kind == models.KindOwner,
	}))

	jsonutil.Created(w, map[string]any{
		"message": "User created successfully",
		"user": userSummary{
			ID:            id,
			Email:         in.email,
			Name:          name,
			UserType:      kind,
			Role:          role.ID,
			RoleName:      role.Name,
			IsApproved:    acct.IsApproved,
			NeedsApproval: kind == models.KindOwner,
		},
	})
}

// updateUserRole assigns a role and applies any submitted account fields.
// When the role belongs to the other database the account is moved there.
func (h *Handler) updateUserRole(w http.ResponseWriter, r *http.Request) {
	cur := h.findAccount(w, r, chi.URLParam(r, "id"))
	if cur == nil {
		return
	}
	f, err := formutil.Read(r)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if f.Get("roleName") == "" {
		jsonutil.BadRequest(w, "roleName is required")
		return
	}
	role := h.lookupRole(w, r, f.Get("roleName"))
	if role == nil {
		return
	}
	if role.Name == models.RoleAdmin && !authz.IsAdmin(r) {
		jsonutil.Forbidden(w, "Only an admin can grant the admin role")
		return
	}
	target := kindFor(role.Name)
	in, ok := readAccountInput(w, f, target)
	if !ok {
		return
	}

	oldRole := noRole
	if prev, err := h.roles.GetByID(r.Context(), cur.account.Role); err == nil {
		oldRole = prev.Name
	}

	if target == cur.kind {
		h.updateInPlace(w, r, cur, role, in, oldRole)
		return
	}
	h.move(w, r, cur, role, in, oldRole)
}

func (h *Handler) updateInPlace(w http.ResponseWriter, r *http.Request, cur *found, role *models.Role, in accountInput, oldRole string) {
	id := cur.account.ID
	accounts := h.accounts(cur.kind)
	err := txn.Run(r.Context(), h.dbs.Accounts(cur.kind), h.logger, func(ctx context.Context) error {
		if err := accounts.SetRole(ctx, id, role.ID); err != nil {
			return err
		}
		if in.email != "" {
			if err := accounts.SetEmail(ctx, id, in.email); err != nil {
				return err
			}
		}
		if in.hash != "" {
			if err := accounts.SetPassword(ctx, id, in.hash); err != nil {
				return err
			}
		}
		if cur.kind == models.KindOwner {
			return h.owners.Update(ctx, id, in.profile)
		}
		return h.students.Update(ctx, id, in.profile)
	})
	if errors.Is(err, accountstore.ErrDuplicateEmail) {
		jsonutil.BadRequest(w, "Email already exists in "+string(cur.kind)+" database")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to update user", err)
		return
	}

	updated, err := accounts.GetByID(r.Context(), id)
	if err != nil {
		h.errLog.Fail(w, r, "failed to reload user", err)
		return
	}
	msg := "User updated successfully"
	if role.ID != cur.account.Role {
		msg = "User role updated successfully"
		h.roleChanged(r, updated, oldRole, role.Name)
	}
	jsonutil.OK(w, map[string]any{
		"message": msg,
		"user":    summaryOf(updated, cur.kind, role),
	})
}

// move re-creates the account in the database of its new kind and removes
// the old document, inside one cross-database transaction where possible.
func (h *Handler) move(w http.ResponseWriter, r *http.Request, cur *found, role *models.Role, in accountInput, oldRole string) {
	ctx := r.Context()
	id := cur.account.ID
	if cur.kind == models.KindOwner && len(cur.account.Hostels) > 0 {
		jsonutil.BadRequest(w, "Owner still has hostels. Remove them before changing the role.")
		return
	}

	var imgs []models.Image
	switch cur.kind {
	case models.KindStudent:
		st, err := h.students.GetByID(ctx, id)
		if err != nil {
			h.errLog.Fail(w, r, "student lookup failed", err)
			return
		}
		if st.AdmittedHostel != nil {
			jsonutil.BadRequest(w, "Student is admitted to a hostel. Remove the admission before changing the role.")
			return
		}
		if imgs, err = h.remover.StudentImages(ctx, st); err != nil {
			h.errLog.Fail(w, r, "failed to collect student images", err)
			return
		}
	case models.KindOwner:
		o, err := h.owners.GetByID(ctx, id)
		if err != nil {
			h.errLog.Fail(w, r, "owner lookup failed", err)
			return
		}
		if !o.IDProof.IsZero() {
			imgs = append(imgs, *o.IDProof)
		}
	}

	raw, err := h.accounts(cur.kind).GetRaw(ctx, id)
	if err != nil {
		h.errLog.Fail(w, r, "failed to load user", err)
		return
	}
	target := kindFor(role.Name)
	doc := movedDocument(raw, target, role.ID, in)

	err = txn.RunMulti(ctx, h.dbs, h.logger, func(ctx context.Context) error {
		if cur.kind == models.KindStudent {
			if _, err := h.hostels.PullStudentActivity(ctx, id); err != nil {
				return err
			}
		}
		if err := h.accounts(cur.kind).Delete(ctx, id); err != nil {
			return err
		}
		return h.accounts(target).InsertRaw(ctx, doc)
	})
	if errors.Is(err, accountstore.ErrDuplicateEmail) {
		jsonutil.BadRequest(w, "Email already exists in "+string(target)+" database")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "failed to move user", err,
			zap.String("from", string(cur.kind)), zap.String("to", string(target)))
		return
	}
	h.images.DeleteAll(ctx, imgs)

	moved, err := h.accounts(target).GetByID(ctx, id)
	if err != nil {
		h.errLog.Fail(w, r, "failed to reload user", err)
		return
	}
	h.logger.Info("account moved",
		zap.String("user_id", id.Hex()),
		zap.String("from", string(cur.kind)),
		zap.String("to", string(target)))
	h.roleChanged(r, moved, oldRole, role.Name)
	jsonutil.OK(w, map[string]any{
		"message": "User role updated successfully",
		"user":    summaryOf(moved, target, role),
	})
}

// sharedKeys are the account fields that survive a move between databases.
var sharedKeys = []string{
	"_id", "email", "password", "googleId", "authProvider",
	"lastLogin", "lastLogout", "createdAt",
}

// movedDocument builds the document an account gets in the database of its
// new kind. Fields the new kind has no use for are dropped. Owners start
// unapproved.
func movedDocument(raw bson.M, to models.Kind, roleID primitive.ObjectID, in accountInput) bson.M {
	doc := accountstore.Defaults(to)
	for _, k := range sharedKeys {
		if v, ok := raw[k]; ok {
			doc[k] = v
		}
	}
	for _, k := range to.ProfileFields() {
		if v, ok := raw[k]; ok {
			doc[k] = v
		}
	}
	for k, v := range in.profile {
		doc[k] = v
	}
	if in.email != "" {
		doc["email"] = in.email
	}
	if in.hash != "" {
		doc["password"] = in.hash
	}
	doc["role"] = roleID
	doc["isApproved"] = to != models.KindOwner
	doc["updatedAt"] = time.Now()
	return doc
}

func summaryOf(a *models.AccountSummary, kind models.Kind, role *models.Role) userSummary {
	return userSummary{
		ID:            a.ID,
		Email:         a.Email,
		Name:          a.Name,
		UserType:      kind,
		Role:          role.ID,
		RoleName:      role.Name,
		IsApproved:    a.IsApproved,
		NeedsApproval: !a.IsApproved,
	}
}

func (h *Handler) roleChanged(r *http.Request, a *models.AccountSummary, oldRole, newRole string) {
	p, _ := auth.PrincipalFrom(r)
	h.audit.Admin(r, p.ID, a.ID, audit.EventUserRoleChanged, map[string]string{
		"old_role": oldRole,
		"new_role": newRole,
	})
	h.notify.Notify(mailer.RoleChangedEmail(a.Email, mailer.RoleChangedEmailData{
		AppName:  h.notify.AppName,
		UserName: a.Name,
		OldRole:  oldRole,
		NewRole:  newRole,
		LoginURL: h.notify.LoginURL,
	}))
}

// deleteUser removes a student (with its hostel activity) or an owner
// without hostels.
func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	cur := h.findAccount(w, r, chi.URLParam(r, "id"))
	if cur == nil {
		return
	}
	ctx := r.Context()
	p, _ := auth.PrincipalFrom(r)
	if cur.account.ID == p.ID {
		jsonutil.BadRequest(w, "You cannot delete your own account")
		return
	}
	if role, err := h.roles.GetByID(ctx, cur.account.Role); err == nil && role.Name == models.RoleAdmin && !authz.IsAdmin(r) {
		jsonutil.Forbidden(w, "Only an admin can delete an admin account")
		return
	}

	switch cur.kind {
	case models.KindStudent:
		st, err := h.students.GetByID(ctx, cur.account.ID)
		if err != nil {
			h.errLog.Fail(w, r, "student lookup failed", err)
			return
		}
		if _, err := h.remover.Student(ctx, st); err != nil {
			h.errLog.Fail(w, r, "failed to delete student", err)
			return
		}
	case models.KindOwner:
		if len(cur.account.Hostels) > 0 {
			jsonutil.BadRequest(w, "Owner still has hostels. Remove them before deleting the owner.")
			return
		}
		o, err := h.owners.GetByID(ctx, cur.account.ID)
		if err != nil {
			h.errLog.Fail(w, r, "owner lookup failed", err)
			return
		}
		if err := h.owners.Delete(ctx, o.ID); err != nil {
			h.errLog.Fail(w, r, "failed to delete owner", err)
			return
		}
		if !o.IDProof.IsZero() {
			h.images.Delete(ctx, *o.IDProof)
		}
	}

	h.audit.Admin(r, p.ID, cur.account.ID, audit.EventUserDeleted, map[string]string{
		"email":     cur.account.Email,
		"user_type": string(cur.kind),
	})
	h.notify.Notify(mailer.AccountDeletedEmail(cur.account.Email, mailer.AccountDeletedEmailData{
		AppName:  h.notify.AppName,
		UserName: cur.account.Name,
	}))
	jsonutil.OK(w, map[string]any{
		"message":  "User deleted successfully",
		"userType": cur.kind,
	})
}

type changePasswordRequest struct {
	UserID      string `json:"userId"`
	RoleID      string `json:"roleId"`
	NewPassword string `json:"newPassword"`
}

// changePassword sets a user's password. The role decides which database
// holds the account.
func (h *Handler) changePassword(w http.ResponseWriter, r *http.Request) {
	var req changePasswordRequest
	_ = jsonutil.Decode(r, &req)
	if req.UserID == "" || req.RoleID == "" || req.NewPassword == "" {
		jsonutil.BadRequest(w, "Missing required fields: userId, roleId, newPassword")
		return
	}
	roleID, err := primitive.ObjectIDFromHex(req.RoleID)
	if err != nil {
		jsonutil.NotFound(w, "Role not found")
		return
	}
	userID, err := primitive.ObjectIDFromHex(req.UserID)
	if err != nil {
		jsonutil.BadRequest(w, "Invalid user id")
		return
	}
	ctx := r.Context()
	role, err := h.roles.GetByID(ctx, roleID)
	if errors.Is(err, rolestore.ErrNotFound) {
		jsonutil.NotFound(w, "Role not found")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "role lookup failed", err)
		return
	}
	if role.Name == models.RoleAdmin && !authz.IsAdmin(r) {
		jsonutil.Forbidden(w, "Only an admin can change an admin password")
		return
	}

	kind := kindFor(role.Name)
	accounts := h.accounts(kind)
	acct, err := accounts.GetByID(ctx, userID)
	if errors.Is(err, accountstore.ErrNotFound) {
		jsonutil.NotFound(w, role.Name+" not found with provided ID")
		return
	}
	if err != nil {
		h.errLog.Fail(w, r, "account lookup failed", err)
		return
	}
	hash, err := authutil.ValidateAndHash(req.NewPassword)
	if err != nil {
		jsonutil.BadRequest(w, err.Error())
		return
	}
	if err := accounts.SetPassword(ctx, acct.ID, hash); err != nil {
		h.errLog.Fail(w, r, "failed to change password", err)
		return
	}

	p, _ := auth.PrincipalFrom(r)
	h.audit.Admin(r, p.ID, acct.ID, audit.EventUserPasswordReset, map[string]string{"user_type": string(kind)})
	sent := h.notify.Notify(mailer.PasswordChangedEmail(acct.Email, mailer.PasswordChangedEmailData{
		AppName:  h.notify.AppName,
		LoginURL: h.notify.LoginURL,
		ByAdmin:  true,
	}))
	jsonutil.OK(w, map[string]any{
		"message":   "Password changed successfully",
		"userType":  role.Name,
		"email":     acct.Email,
		"emailSent": sent,
	})
}
