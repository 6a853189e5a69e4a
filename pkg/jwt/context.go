package jwt

import "context"

type contextKey struct{ name string }

func (c contextKey) String() string { return c.name }

var (
	tokenContextKey  = &contextKey{name: "jwt"}
	claimsContextKey = &contextKey{name: "jwt_claims"}
)

// SetToken sets the raw JWT token string in the context.
func SetToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// SetClaims sets the parsed access claims in the context.
func SetClaims(ctx context.Context, claims AccessClaims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// GetToken returns the raw JWT token string from the context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok
}

// GetClaims returns the access claims from the context.
func GetClaims(ctx context.Context) (AccessClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(AccessClaims)
	return claims, ok
}

// UserID returns the authenticated user ID from the context, or "" when the
// request carries no valid token.
func UserID(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok {
		return ""
	}
	return claims.Subject
}
