package domain

// Role names carried in the bearer token's role claim.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)
