// Package identity verifies bearer tokens and carries the resulting caller
// identity through request contexts.
package identity

import (
	"context"
	"net/http"
	"strings"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleStaff    Role = "staff"
)

type Identity struct {
	ID          string `json:"id"`
	Role        Role   `json:"role"`
	DisplayName string `json:"displayName"`
}

func (i *Identity) IsStaff() bool {
	return i != nil && i.Role == RoleStaff
}

// Verifier turns a token into an identity.
type Verifier interface {
	Verify(token string) (Identity, error)
}

type ctxKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns nil for anonymous callers.
func FromContext(ctx context.Context) *Identity {
	id, ok := ctx.Value(ctxKey{}).(Identity)
	if !ok {
		return nil
	}
	return &id
}

// TokenFromRequest reads "Authorization: Bearer <t>", falling back to the
// token query parameter that browsers use for websocket handshakes.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// Resolve verifies the request's token. Missing or bad tokens yield nil.
func Resolve(r *http.Request, v Verifier) (*Identity, error) {
	token := TokenFromRequest(r)
	if token == "" {
		return nil, nil
	}
	id, err := v.Verify(token)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
