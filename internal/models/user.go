package models

// User is the read-only slice of a user record the messaging core needs.
type User struct {
	ID             string `db:"id" json:"id"`
	Username       string `db:"username" json:"username"`
	ProfilePicture string `db:"profile_picture" json:"profile_picture"`
}

// Ref converts the user into the reference embedded in messages.
func (u User) Ref() UserRef {
	return UserRef{ID: u.ID, Username: u.Username, ProfilePicture: u.ProfilePicture}
}

// Post is the read-only slice of a post record.
type Post struct {
	ID          string `db:"id" json:"id"`
	UserID      string `db:"user_id" json:"user_id"`
	Title       string `db:"title" json:"title"`
	Description string `db:"description" json:"description"`
	MediaURL    string `db:"media_url" json:"media_url"`
	MediaType   string `db:"media_type" json:"media_type"`
}

// Ref converts the post into the projection attached to shared messages.
func (p Post) Ref() PostRef {
	return PostRef{ID: p.ID, Title: p.Title, Description: p.Description, MediaURL: p.MediaURL, MediaType: p.MediaType}
}
