package domain

import (
	"github.com/google/uuid"
)

type Role string

const (
	RoleTeller  Role = "TELLER"
	RoleManager Role = "MANAGER"
	RoleAdmin   Role = "ADMIN"
	RoleSystem  Role = "SYSTEM"
)

func (r Role) Valid() bool {
	switch r {
	case RoleTeller, RoleManager, RoleAdmin, RoleSystem:
		return true
	}
	return false
}

// Elevated roles act across branches.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleSystem
}

// SystemUserID identifies the principal used for seed and automated postings.
var SystemUserID = uuid.Nil

// Principal is an already-authenticated caller.
type Principal struct {
	ID           uuid.UUID `json:"id"`
	Role         Role      `json:"role"`
	HomeBranchID uuid.UUID `json:"home_branch_id"`
}

// SystemPrincipal returns the principal automated postings are attributed to.
func SystemPrincipal(homeBranchID uuid.UUID) Principal {
	return Principal{ID: SystemUserID, Role: RoleSystem, HomeBranchID: homeBranchID}
}

// CanAct reports whether p may operate on a resource owned by resourceBranch.
// Every ledger operation authorizes through this predicate.
func CanAct(p Principal, resourceBranch uuid.UUID) bool {
	if !p.Role.Valid() {
		return false
	}
	if p.Role.Elevated() {
		return true
	}
	return p.HomeBranchID != uuid.Nil && p.HomeBranchID == resourceBranch
}
