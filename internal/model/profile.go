package model

// Profile is the signed-in user's display name and avatar for the session.
type Profile struct {
	// Name is the user principal name reported by the profile service.
	Name string `json:"name"`

	// Image is a URL or a data: URI for the avatar.
	Image string `json:"image"`
}

// IsEmpty reports whether the profile has not been populated yet.
func (p Profile) IsEmpty() bool {
	return p.Name == "" && p.Image == ""
}

// Account is the identity provider's view of the signed-in user.
type Account struct {
	// Username is the preferred username (usually the UPN).
	Username string `json:"username"`

	// Name is the display name from the id token.
	Name string `json:"name"`

	// ObjectID is the directory object id (oid claim).
	ObjectID string `json:"oid"`

	// TenantID is the directory tenant (tid claim).
	TenantID string `json:"tid"`
}
