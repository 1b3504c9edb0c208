package identity

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/walkup-orders/pkg/apperr"
)

func TestJWT_IssueVerify(t *testing.T) {
	j := NewJWT("secret", "walkup")
	token, err := j.Issue(Identity{ID: "staff-1", Role: RoleStaff, DisplayName: "Sam"}, time.Hour)
	require.NoError(t, err)

	id, err := j.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, Identity{ID: "staff-1", Role: RoleStaff, DisplayName: "Sam"}, id)
	assert.True(t, id.IsStaff())
}

func TestJWT_Rejects(t *testing.T) {
	j := NewJWT("secret", "walkup")

	expired, err := j.Issue(Identity{ID: "u", Role: RoleCustomer}, -time.Minute)
	require.NoError(t, err)
	otherKey, err := NewJWT("other", "walkup").Issue(Identity{ID: "u", Role: RoleCustomer}, time.Hour)
	require.NoError(t, err)
	otherIssuer, err := NewJWT("secret", "elsewhere").Issue(Identity{ID: "u", Role: RoleCustomer}, time.Hour)
	require.NoError(t, err)
	badRole, err := j.Issue(Identity{ID: "u", Role: "admin"}, time.Hour)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"expired":      expired,
		"wrong key":    otherKey,
		"wrong issuer": otherIssuer,
		"unknown role": badRole,
		"garbage":      "not.a.jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := j.Verify(token)
			assert.ErrorIs(t, err, ErrInvalidToken)
			assert.Equal(t, apperr.KindUnauthorized, apperr.KindOf(err))
		})
	}
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest("GET", "/ws?token=from-query", nil)
	assert.Equal(t, "from-query", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer from-header")
	assert.Equal(t, "from-header", TokenFromRequest(r))

	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Basic abc")
	assert.Empty(t, TokenFromRequest(r))
}

func TestResolve(t *testing.T) {
	j := NewJWT("secret", "")
	r := httptest.NewRequest("GET", "/ws", nil)
	id, err := Resolve(r, j)
	assert.NoError(t, err)
	assert.Nil(t, id)

	r = httptest.NewRequest("GET", "/ws?token=bogus", nil)
	id, err = Resolve(r, j)
	assert.Error(t, err)
	assert.Nil(t, id)

	token, err := j.Issue(Identity{ID: "c-1", Role: RoleCustomer}, time.Minute)
	require.NoError(t, err)
	r = httptest.NewRequest("GET", "/ws", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	id, err = Resolve(r, j)
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, "c-1", id.ID)
	assert.False(t, id.IsStaff())
}
