package auth

import "context"

// StrategyJWT is the name of the bearer access token strategy.
const StrategyJWT = "jwt"

// RouteAuth is the authentication and authorisation metadata attached to a
// route. A nil *RouteAuth means the route carries no metadata at all.
type RouteAuth struct {
	// Strategy names the authentication strategy. Empty means StrategyJWT.
	Strategy string

	// Required lists the permissions the caller must hold. Empty means any
	// authenticated identity may proceed.
	Required []PermissionKey

	// Skip marks the route as authentication-exempt.
	Skip bool
}

// StrategyName returns the configured strategy or the default.
func (m *RouteAuth) StrategyName() string {
	if m.Strategy == "" {
		return StrategyJWT
	}
	return m.Strategy
}

// Public returns metadata for an authentication-exempt route.
func Public() *RouteAuth {
	return &RouteAuth{Skip: true}
}

// Authenticated returns metadata requiring a bearer token and the given
// permissions.
func Authenticated(required ...PermissionKey) *RouteAuth {
	return &RouteAuth{Strategy: StrategyJWT, Required: required}
}

// Gate decides whether the identity in a request context may invoke a
// route. It holds no state.
type Gate struct{}

// Authorize applies meta to the identity in ctx. With no metadata, or on an
// exempt route, it always passes. Otherwise an identity must be present and
// must hold every required permission; a missing permission yields a
// Forbidden error.
func (Gate) Authorize(ctx context.Context, meta *RouteAuth) error {
	if meta == nil || meta.Skip {
		return nil
	}

	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return ErrIdentityMissing
	}
	if !HasPermission(identity.Permissions, meta.Required) {
		return Forbidden(MsgInvalidAccessPermission)
	}
	return nil
}
