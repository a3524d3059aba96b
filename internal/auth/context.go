package auth

import "context"

type principalContextKey struct{}
type credentialContextKey struct{}

// ContextWithPrincipal attaches the authenticated principal to the context.
func ContextWithPrincipal(ctx context.Context, principal Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, &principal)
}

// PrincipalFromContext extracts the authenticated principal from the context.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	v, ok := ctx.Value(principalContextKey{}).(*Principal)
	if !ok || v == nil {
		return Principal{}, false
	}
	return *v, true
}

// UserIDFromContext returns the authenticated user's id, if any. Audit
// logging uses this to stamp entries without carrying the whole principal.
func UserIDFromContext(ctx context.Context) (string, bool) {
	p, ok := PrincipalFromContext(ctx)
	if !ok || p.User == nil {
		return "", false
	}
	return p.User.ID, true
}

// ContextWithCredential stores the raw presented credential (bearer token or
// session id) inside the context so logout can revoke exactly it.
func ContextWithCredential(ctx context.Context, presented string) context.Context {
	if presented == "" {
		return ctx
	}
	return context.WithValue(ctx, credentialContextKey{}, presented)
}

// CredentialFromContext returns the presented credential if attached.
func CredentialFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(credentialContextKey{}).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
