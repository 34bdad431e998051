// Package rbac implements the permission model and the access-control gate.
//
// Roles map to static capability sets built by construction so that each
// higher-privilege role's set is a superset of the one below it. Unknown
// roles get the least-privileged set. There is deliberately no capability
// for transferring funds on another actor's behalf: funds transfer is
// own-scoped for every role.
package rbac

import "github.com/primebank/guardrail/internal/domain"

// Capability is a named permission an actor may or may not hold.
type Capability string

const (
	CapViewOwnAccount    Capability = "view_own_account"
	CapViewAnyAccount    Capability = "view_any_account"
	CapTransferOwnFunds  Capability = "transfer_own_funds"
	CapFileFraudReport   Capability = "file_fraud_report"
	CapViewAuditLog      Capability = "view_audit_log"
	CapAdministerTickets Capability = "administer_tickets"
	CapManagePolicy      Capability = "manage_policy"
)

// anyScopeOf maps an own-scoped capability to the capability that lifts its
// ownership restriction. Capabilities absent from this map either carry no
// target (audit, tickets, policy) or are own-only for every role (transfers).
var anyScopeOf = map[Capability]Capability{
	CapViewOwnAccount:  CapViewAnyAccount,
	CapFileFraudReport: CapViewAnyAccount,
}

type capSet map[Capability]struct{}

func newCapSet(caps ...Capability) capSet {
	s := make(capSet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

// union builds a new set from base plus extra, preserving the superset
// property between adjacent roles by construction.
func union(base capSet, extra ...Capability) capSet {
	s := make(capSet, len(base)+len(extra))
	for c := range base {
		s[c] = struct{}{}
	}
	for _, c := range extra {
		s[c] = struct{}{}
	}
	return s
}

var (
	userCaps = newCapSet(
		CapViewOwnAccount,
		CapTransferOwnFunds,
		CapFileFraudReport,
	)
	staffCaps = union(userCaps,
		CapViewAnyAccount,
		CapAdministerTickets,
	)
	adminCaps = union(staffCaps,
		CapViewAuditLog,
		CapManagePolicy,
	)
)

var roleCaps = map[domain.Role]capSet{
	domain.RoleUser:  userCaps,
	domain.RoleStaff: staffCaps,
	domain.RoleAdmin: adminCaps,
}

// CapabilitiesOf returns the capability set for a role. Unknown roles map
// to the USER (least privileged) set. The returned slice is a copy.
func CapabilitiesOf(role domain.Role) []Capability {
	set, ok := roleCaps[role]
	if !ok {
		set = userCaps
	}
	out := make([]Capability, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	return out
}

// HasCapability reports whether a role holds a capability. Pure and total:
// unknown roles fall back to the least-privileged set.
func HasCapability(role domain.Role, cap Capability) bool {
	set, ok := roleCaps[role]
	if !ok {
		set = userCaps
	}
	_, held := set[cap]
	return held
}

// AnyScopeOf returns the capability that lifts the ownership restriction of
// an own-scoped capability, and whether one exists. Capabilities without an
// any-scope counterpart can never be exercised against another actor's
// resources, regardless of role.
func AnyScopeOf(cap Capability) (Capability, bool) {
	a, ok := anyScopeOf[cap]
	return a, ok
}

// IsAnyScope reports whether cap itself lifts an ownership restriction and
// so may be exercised against any target.
func IsAnyScope(cap Capability) bool {
	for _, a := range anyScopeOf {
		if a == cap {
			return true
		}
	}
	return false
}
