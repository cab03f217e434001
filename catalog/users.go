package catalog

import (
	"crypto/subtle"

	"github.com/freekieb7/storefront/filesystem"
)

type User struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Password string `json:"password,omitempty"`
}

// Public drops the credentials.
func (user User) Public() User {
	user.Password = ""
	return user
}

type Users struct {
	users []User
}

func LoadUsers(path string, fs filesystem.Filesystem) (*Users, error) {
	var users []User
	if err := readJSON(fs, path, &users); err != nil {
		return nil, err
	}

	return &Users{users: users}, nil
}

func NewUsers(users ...User) *Users {
	return &Users{users: users}
}

// Authenticate returns the user matching both username and password.
func (u *Users) Authenticate(username, password string) (User, bool) {
	for _, user := range u.users {
		if user.Username != username {
			continue
		}

		if subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) == 1 {
			return user.Public(), true
		}
		return User{}, false
	}

	return User{}, false
}

func (u *Users) Len() int {
	return len(u.users)
}
