package domain

// Profile holds the user's public profile details
type Profile struct {
	Bio            string `json:"bio"`
	ProfilePicture string `json:"profile_picture"`
}

// UserProfile is the authenticated user as returned by the profile endpoint
type UserProfile struct {
	Username  string  `json:"username"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Profile   Profile `json:"profile"`
}

// DisplayName returns the full name when present, the username otherwise
func (u *UserProfile) DisplayName() string {
	switch {
	case u == nil:
		return ""
	case u.FirstName != "" && u.LastName != "":
		return u.FirstName + " " + u.LastName
	case u.FirstName != "":
		return u.FirstName
	default:
		return u.Username
	}
}
