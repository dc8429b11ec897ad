package policy

import (
	"fmt"
	"sort"
)

// Role identifies the kind of caller asking for a helper
type Role string

// HelperID identifies the downstream helper that serves an authorized caller
type HelperID string

// Roles and helpers shipped in the default policy table
const (
	RoleAdmin     Role = "admin"
	RoleLogistics Role = "logistics"
	RoleFinance   Role = "finance"

	AdminHelper     HelperID = "AdminHelper"
	LogisticsHelper HelperID = "LogisticsHelper"
	FinanceHelper   HelperID = "FinanceHelper"
)

/* Entry is one row of the policy table: role -> permissions -> helper
 * Uses value semantics as it represents data, not behavior
 */
type Entry struct {
	Role           Role
	Helper         HelperID
	Administrative bool
	Permissions    []string

	permissions map[string]struct{}
}

func newEntry(role Role, helper HelperID, administrative bool, permissions []string) Entry {
	set := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		set[p] = struct{}{}
	}
	perms := make([]string, 0, len(set))
	for p := range set {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return Entry{
		Role:           role,
		Helper:         helper,
		Administrative: administrative,
		Permissions:    perms,
		permissions:    set,
	}
}

// Validate checks if the entry can be used for routing decisions
func (e Entry) Validate() error {
	if e.Role == "" {
		return fmt.Errorf("role cannot be empty")
	}
	if e.Helper == "" {
		return fmt.Errorf("helper cannot be empty for role %s", e.Role)
	}
	if !e.Administrative && len(e.Permissions) == 0 {
		return fmt.Errorf("role %s must list at least one permission", e.Role)
	}
	for _, p := range e.Permissions {
		if p == "" {
			return fmt.Errorf("role %s has an empty permission", e.Role)
		}
	}
	return nil
}

// Allows reports whether any of the given permissions qualifies for the entry
func (e Entry) Allows(permissions []string) bool {
	for _, p := range permissions {
		if _, ok := e.permissions[p]; ok {
			return true
		}
	}
	return false
}
