package policy_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/marcelsud/assistant-gateway/policy"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) (*policy.Engine, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	return policy.NewEngine(policy.DefaultTable(), zerolog.New(&buf)), &buf
}

func caller(role policy.Role, perms ...string) policy.CallerContext {
	return policy.CallerContext{
		UserID:      "user-1",
		Role:        role,
		Permissions: perms,
		SessionID:   "session-1",
	}
}

func TestAuthorize_Scenarios(t *testing.T) {
	ctx := context.Background()
	engine, _ := newEngine(t)

	t.Run("admin with no permissions is routed to the admin helper", func(t *testing.T) {
		d := engine.Authorize(ctx, caller(policy.RoleAdmin))

		assert.True(t, d.Authorized())
		assert.Equal(t, policy.AdminHelper, d.Helper)
		assert.Empty(t, d.Reason)
		assert.NoError(t, d.Err())
	})

	t.Run("logistics with read:cte is routed to the logistics helper", func(t *testing.T) {
		d := engine.Authorize(ctx, caller(policy.RoleLogistics, "read:cte"))

		assert.True(t, d.Authorized())
		assert.Equal(t, policy.LogisticsHelper, d.Helper)
	})

	t.Run("logistics with a billing permission is rejected", func(t *testing.T) {
		d := engine.Authorize(ctx, caller(policy.RoleLogistics, "read:billing"))

		assert.False(t, d.Authorized())
		assert.Equal(t, policy.Rejected, d.Outcome)
		assert.Equal(t, policy.ReasonNoQualifyingPermission, d.Reason)
		assert.Empty(t, d.Helper)
		assert.ErrorIs(t, d.Err(), policy.ErrNoQualifyingPermission)
	})

	t.Run("unknown role is rejected even with permissions", func(t *testing.T) {
		d := engine.Authorize(ctx, caller("supervisor", "read:cte", "read:billing"))

		assert.Equal(t, policy.Rejected, d.Outcome)
		assert.Equal(t, policy.ReasonUnknownRole, d.Reason)
		assert.ErrorIs(t, d.Err(), policy.ErrUnknownRole)
	})
}

func TestAuthorize_Matrix(t *testing.T) {
	ctx := context.Background()
	table := policy.DefaultTable()
	engine := policy.NewEngine(table, zerolog.Nop())

	permissionSets := [][]string{
		nil,
		{"read:cte"},
		{"read:billing"},
		{"read:cte", "read:billing"},
		{"write:invoices", "unrelated"},
		{"unrelated"},
		{"track:shipments", "read:payments", "admin:*"},
	}
	roles := []policy.Role{policy.RoleAdmin, policy.RoleLogistics, policy.RoleFinance, "guest", ""}

	for _, role := range roles {
		for _, perms := range permissionSets {
			d := engine.Authorize(ctx, caller(role, perms...))

			entry, known := table.Lookup(role)
			if !known {
				assert.Equal(t, policy.ReasonUnknownRole, d.Reason, "role=%q perms=%v", role, perms)
				assert.False(t, d.Authorized())
				continue
			}

			want := entry.Administrative || intersects(entry.Permissions, perms)
			assert.Equal(t, want, d.Authorized(), "role=%q perms=%v", role, perms)
			if want {
				assert.Equal(t, entry.Helper, d.Helper)
			} else {
				assert.Equal(t, policy.ReasonNoQualifyingPermission, d.Reason)
			}
		}
	}
}

func TestAuthorize_Idempotent(t *testing.T) {
	engine, _ := newEngine(t)
	c := caller(policy.RoleFinance, "read:invoices")

	first := engine.Authorize(context.Background(), c)
	second := engine.Authorize(context.Background(), c)

	assert.Equal(t, first, second)
}

func TestAuthorize_Audit(t *testing.T) {
	engine, buf := newEngine(t)

	engine.Authorize(context.Background(), caller(policy.RoleLogistics, "read:billing"))

	out := buf.String()
	assert.Contains(t, out, `"role":"logistics"`)
	assert.Contains(t, out, `"outcome":"rejected"`)
	assert.Contains(t, out, `"reason":"no_qualifying_permission"`)
	assert.Contains(t, out, `"decided_at"`)
}

func TestCallerContext_Validate(t *testing.T) {
	tests := []struct {
		name    string
		caller  policy.CallerContext
		wantErr string
	}{
		{"valid", caller(policy.RoleAdmin), ""},
		{"missing user", policy.CallerContext{Role: policy.RoleAdmin, SessionID: "s"}, "userId is required"},
		{"missing role", policy.CallerContext{UserID: "u", SessionID: "s"}, "role is required"},
		{"missing session", policy.CallerContext{UserID: "u", Role: policy.RoleAdmin}, "sessionId is required"},
		{"empty permission", caller(policy.RoleLogistics, "read:cte", ""), "permissions[1] is empty"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.caller.Validate()
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, policy.ErrValidation)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func intersects(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}
