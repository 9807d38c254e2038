package auth_test

import (
	"testing"
	"time"

	"github.com/mkayfour/school-lending/pkg/auth"
	"github.com/stretchr/testify/require"
)

func TestIssuer_IssueParse(t *testing.T) {
	t.Parallel()
	iss := auth.NewIssuer(auth.Config{JWTSecret: "secret", TokenTTL: time.Hour})

	token, exp, err := iss.Issue(auth.Principal{UserID: 7, Role: auth.RoleStaff, Name: "Dana"})
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	p, err := iss.Parse(token)
	require.NoError(t, err)
	require.Equal(t, auth.Principal{UserID: 7, Role: auth.RoleStaff, Name: "Dana"}, p)

	other := auth.NewIssuer(auth.Config{JWTSecret: "other"})
	_, err = other.Parse(token)
	require.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestIssuer_DefaultTTL(t *testing.T) {
	t.Parallel()
	iss := auth.NewIssuer(auth.Config{JWTSecret: "secret", TokenTTL: -time.Minute})
	token, _, err := iss.Issue(auth.Principal{UserID: 1, Role: auth.RoleStudent})
	require.NoError(t, err)
	_, err = iss.Parse(token)
	require.NoError(t, err)
}

func TestPolicy_Allows(t *testing.T) {
	t.Parallel()
	p := auth.DefaultPolicy()
	tests := []struct {
		role   auth.Role
		action auth.Action
		want   bool
	}{
		{auth.RoleStudent, auth.ActionCreateRequest, true},
		{auth.RoleStaff, auth.ActionCreateRequest, false},
		{auth.RoleAdmin, auth.ActionCreateRequest, false},
		{auth.RoleStudent, auth.ActionApproveRequest, false},
		{auth.RoleStaff, auth.ActionApproveRequest, true},
		{auth.RoleAdmin, auth.ActionReturnRequest, true},
		{auth.RoleStudent, auth.ActionListAllRequests, false},
		{auth.RoleStudent, auth.ActionReadOwnRequests, true},
		{auth.RoleStaff, auth.ActionDeleteEquipment, false},
		{auth.RoleAdmin, auth.ActionDeleteEquipment, true},
		{auth.Role("GUEST"), auth.ActionReadOwnRequests, false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, p.Allows(tt.role, tt.action), "%s %s", tt.role, tt.action)
	}
}
