package domain

// Identity is the authenticated user context. Token is the opaque bearer credential.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Token  string `json:"-"`
}

// Keys used in the durable local store.
const (
	KeyToken     = "token"
	KeyUser      = "user"
	KeyFavorites = "crypto-favorites"
)

// IsAbsentValue reports whether a persisted value must be treated as missing.
// "undefined" and "null" are left behind by corrupted browser storage.
func IsAbsentValue(v string) bool {
	switch v {
	case "", "undefined", "null":
		return true
	}
	return false
}
