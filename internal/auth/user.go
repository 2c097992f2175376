package auth

import (
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// User is an entry of the users file. Password holds a bcrypt hash.
type User struct {
	Login    string `yaml:"user"`
	Name     string `yaml:"name,omitempty"`
	Password string `yaml:"password"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

func (u *User) CheckPassword(password string) bool {
	if u == nil || u.Password == "" {
		return false
	}

	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

func (u *User) SetPassword(password string) error {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return err
	}

	u.Password = string(b)

	return nil
}

func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}

	return u.Login
}
