package session

// Role classifies an identity for redirect and access decisions.
type Role string

const (
	// RoleCustomer is the default role for phone-verified visitors.
	RoleCustomer Role = "customer"
	// RoleSalonOwner is the administrative role. Owners land on the
	// management surface and may use the password login channel.
	RoleSalonOwner Role = "salon_owner"
)

// Identity is the authenticated user as returned by the remote API.
// Name and Email may be empty until profile completion runs.
type Identity struct {
	ID             string
	Phone          string
	Email          string
	Name           string
	Role           Role
	FavoriteSalons map[string]struct{}
	LoyaltyPoints  int
	PerSalonPoints map[string]int
}

// PointsFor returns the loyalty points accrued at a single salon.
func (id Identity) PointsFor(salonID string) int {
	if id.PerSalonPoints == nil {
		return 0
	}
	return id.PerSalonPoints[salonID]
}

// Session pairs an identity with its opaque bearer token. The token is
// never parsed or verified client-side.
type Session struct {
	Identity Identity
	Token    string
}

// Complete reports whether the identity carries enough profile data to
// transact: a non-empty name plus at least one contact channel. It is
// derived on every call and never stored.
func (s Session) Complete() bool {
	if s.Identity.Name == "" {
		return false
	}
	return s.Identity.Phone != "" || s.Identity.Email != ""
}
