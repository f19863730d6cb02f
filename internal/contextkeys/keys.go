package contextkeys

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey string

// AuthContext is the context key for the resolved per-request identity.
const AuthContext contextKey = "authContext"
