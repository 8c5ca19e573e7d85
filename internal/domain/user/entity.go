package user

import "time"

// User represents a user entity in the system.
type User struct {
	ID        int64      // ID is assigned by storage on creation and never changes
	Email     string     // Email is the unique, normalized email address of the user
	FullName  string     // FullName is the sanitized full name of the user
	Bio       *string    // Bio is optional; nil means absent, which differs from ""
	CreatedAt time.Time  // CreatedAt is set once at creation
	UpdatedAt *time.Time // UpdatedAt is nil until the first update
}

// LastModified returns UpdatedAt, or CreatedAt if the user was never updated.
func (u *User) LastModified() time.Time {
	if u.UpdatedAt != nil {
		return *u.UpdatedAt
	}
	return u.CreatedAt
}

// Touch sets UpdatedAt to now, moved forward if needed so that it is strictly
// later than the previous modification time.
func (u *User) Touch(now time.Time) {
	prev := u.LastModified()
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	u.UpdatedAt = &now
}
