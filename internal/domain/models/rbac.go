// internal/domain/models/rbac.go
package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// System roles. They are seeded at startup and cannot be deleted.
const (
	RoleAdmin       = "admin"
	RoleStudent     = "student"
	RoleHostelOwner = "hostelOwner"
)

// SystemRoles returns the seeded roles with their descriptions.
func SystemRoles() []Role {
	return []Role{
		{Name: RoleAdmin, Description: "Administrator with full access"},
		{Name: RoleHostelOwner, Description: "Hostel owner with limited access"},
		{Name: RoleStudent, Description: "Student user"},
	}
}

// IsSystemRole reports whether name is one of the seeded roles.
func IsSystemRole(name string) bool {
	switch name {
	case RoleAdmin, RoleStudent, RoleHostelOwner:
		return true
	}
	return false
}

// CanonicalRoleName maps accepted aliases onto stored role names.
// "owner" is accepted for hostelOwner.
func CanonicalRoleName(name string) string {
	n := strings.TrimSpace(name)
	if strings.EqualFold(n, "owner") || strings.EqualFold(n, RoleHostelOwner) {
		return RoleHostelOwner
	}
	return n
}

// KindForRole returns the account kind that holds users with the given
// role name, or "" for roles that are not bound to a kind.
func KindForRole(name string) Kind {
	switch CanonicalRoleName(name) {
	case RoleStudent:
		return KindStudent
	case RoleHostelOwner:
		return KindOwner
	}
	return ""
}

// Permission actions.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionEdit   = "edit"
	ActionDelete = "delete"
)

// IsValidAction checks a permission action name.
func IsValidAction(a string) bool {
	switch a {
	case ActionRead, ActionWrite, ActionEdit, ActionDelete:
		return true
	}
	return false
}

// Modules guarded by role permissions.
const (
	ModuleStudent     = "Student"
	ModuleHostels     = "Hostels"
	ModuleOwners      = "Owners"
	ModuleVerify      = "verify"
	ModuleGroups      = "Groups"
	ModuleRoles       = "Roles"
	ModuleUsers       = "Users"
	ModulePermissions = "Permissions"
)

// Role is a named role. Accounts reference roles by id.
type Role struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	Description string             `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// Group bundles roles that should receive access to one module.
type Group struct {
	ID           primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	ModuleID     string               `bson:"moduleId" json:"moduleId"`
	ModuleName   string               `bson:"moduleName" json:"moduleName"`
	Name         string               `bson:"name" json:"name"`
	Roles        []primitive.ObjectID `bson:"roles" json:"roles"`
	DateModified time.Time            `bson:"dateModified" json:"dateModified"`
}

// Permission grants a role actions on one module.
type Permission struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	ModuleID   string             `bson:"moduleId" json:"moduleId"`
	ModuleName string             `bson:"moduleName" json:"moduleName"`
	Name       string             `bson:"name" json:"name"`
	Read       bool               `bson:"read" json:"read"`
	Write      bool               `bson:"write" json:"write"`
	Edit       bool               `bson:"edit" json:"edit"`
	Delete     bool               `bson:"delete" json:"delete"`
	Role       primitive.ObjectID `bson:"role" json:"role"`
}

// Allows reports whether the permission grants action.
func (p *Permission) Allows(action string) bool {
	switch action {
	case ActionRead:
		return p.Read
	case ActionWrite:
		return p.Write
	case ActionEdit:
		return p.Edit
	case ActionDelete:
		return p.Delete
	}
	return false
}

// RolePermission lists the permissions held by one role.
type RolePermission struct {
	ID          primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Role        primitive.ObjectID   `bson:"role" json:"role"`
	Permissions []primitive.ObjectID `bson:"permissions" json:"permissions"`
}
