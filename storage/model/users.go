package model

import (
	"time"
)

// User is an operator allowed to trigger imports, exports and undo
// operations through the admin API. The username is recorded as the
// principal of those operations. While no user exists the admin API is
// open.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Username string `gorm:"uniqueIndex;size:255" json:"username"`
	// PasswordHash is a PHC-formatted argon2id hash
	PasswordHash string `json:"-"`
	DisplayName  string `json:"display_name"`
	Disabled     bool   `json:"disabled"`
}

// NewUser holds what is needed to create a User
type NewUser struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

// UserUpdate lists changes to a User; nil fields are kept
type UserUpdate struct {
	DisplayName *string `json:"display_name"`
	Password    *string `json:"password"`
	Disabled    *bool   `json:"disabled"`
}

// Authentication failures
var (
	ErrInvalidCredentials = CredentialsError("invalid credentials")
	ErrUserDisabled       = CredentialsError("user disabled")
)

// UsersStore manages admin users. Returned users never carry a password
// hash.
type UsersStore interface {
	Count() (int64, error)
	List() ([]User, error)
	Get(username string) (*User, error)
	Create(u NewUser) (*User, error)
	Update(username string, update UserUpdate) (*User, error)
	Delete(username string) error
	// Authenticate checks a username/password combination. Unknown users and
	// wrong passwords both give ErrInvalidCredentials.
	Authenticate(username, password string) (*User, error)
}
