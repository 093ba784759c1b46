package auth

// PermissionKey is a named capability. Identities hold a set of keys and
// routes declare the set they require.
type PermissionKey string

// Permission keys. The string values are the wire form stored on user
// records and embedded in access tokens.
const (
	ViewOwnUser   PermissionKey = "ViewOwnUser"
	CreateUser    PermissionKey = "CreateUser"
	UpdateOwnUser PermissionKey = "UpdateOwnUser"
	DeleteOwnUser PermissionKey = "DeleteOwnUser"
	SuperUser     PermissionKey = "SuperUser"
)

var allPermissions = []PermissionKey{
	ViewOwnUser,
	CreateUser,
	UpdateOwnUser,
	DeleteOwnUser,
	SuperUser,
}

// DefaultPermissions are granted to accounts created through signup.
var DefaultPermissions = []PermissionKey{ViewOwnUser, UpdateOwnUser, DeleteOwnUser}

// HasPermission reports whether every key in required is present in owned.
// An empty required set is always satisfied. Order and duplicates in
// either slice do not matter.
func HasPermission(owned, required []PermissionKey) bool {
	if len(required) == 0 {
		return true
	}

	held := make(map[PermissionKey]struct{}, len(owned))
	for _, p := range owned {
		held[p] = struct{}{}
	}
	for _, p := range required {
		if _, ok := held[p]; !ok {
			return false
		}
	}
	return true
}

// IsValidPermission returns true if p is one of the known permission keys.
func IsValidPermission(p PermissionKey) bool {
	for _, v := range allPermissions {
		if p == v {
			return true
		}
	}
	return false
}

// AllPermissions returns a copy of every known permission key.
func AllPermissions() []PermissionKey {
	result := make([]PermissionKey, len(allPermissions))
	copy(result, allPermissions)
	return result
}
