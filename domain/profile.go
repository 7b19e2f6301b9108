package domain

// ProfileSummary is the slice of a user profile attached to relationship
// notifications and profile-update broadcasts. Always fetched fresh from the
// backend; client-submitted bodies are never relayed.
type ProfileSummary struct {
	UserID      string `json:"userId,omitempty"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName,omitempty"`
	Avatar      string `json:"avatar,omitempty"`
	Photo       string `json:"photo,omitempty"`
	Bio         string `json:"bio,omitempty"`
	Age         int    `json:"age,omitempty"`
}

// BareProfile is the degraded summary used when the backend fetch fails.
func BareProfile(username string) ProfileSummary {
	return ProfileSummary{Username: username}
}
