package auth

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func writeUsers(t *testing.T, path string, users ...*User) {
	t.Helper()

	dat, err := yaml.Marshal(users)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, dat, 0o600))
}

func newUser(t *testing.T, login, password string, disabled bool) *User {
	t.Helper()

	u := &User{Login: login, Disabled: disabled}
	require.NoError(t, u.SetPassword(password))

	return u
}

func TestPassword(t *testing.T) {
	u := &User{Login: "anna"}

	assert.False(t, u.CheckPassword(""))

	require.NoError(t, u.SetPassword("secret"))
	assert.True(t, u.CheckPassword("secret"))
	assert.False(t, u.CheckPassword("Secret"))
	assert.Equal(t, "anna", u.DisplayName())
}

func TestFileRepo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yml")
	writeUsers(t, path, newUser(t, "anna", "one", false), newUser(t, "bob", "two", true))

	r := NewFileRepo(path)

	assert.Equal(t, []string{"anna", "bob"}, r.Logins())
	assert.True(t, r.CheckAuth("anna", "one"))
	assert.True(t, r.CheckAuth("anna", "one"))
	assert.False(t, r.CheckAuth("anna", "two"))
	assert.False(t, r.CheckAuth("bob", "two"))
	assert.False(t, r.CheckAuth("carl", "one"))

	assert.NotNil(t, r.Get("anna"))
	assert.Nil(t, r.Get("carl"))
}

func TestFileRepoDefaultUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yml")

	r := NewFileRepo(path)

	assert.Equal(t, []string{"dispatcher"}, r.Logins())
	assert.True(t, r.CheckAuth("dispatcher", "dispatcher"))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestFileRepoCheckCacheBounded(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yml")
	writeUsers(t, path, newUser(t, "anna", "one", false))

	r := NewFileRepo(path)

	for i := range 200 {
		assert.False(t, r.CheckAuth("carl", strconv.Itoa(i)))
	}

	for i := range 3 {
		assert.False(t, r.CheckAuth("anna", strconv.Itoa(i)))
	}

	assert.Equal(t, 0, r.verified.Len())

	assert.True(t, r.CheckAuth("anna", "one"))
	assert.True(t, r.CheckAuth("anna", "one"))
	assert.False(t, r.CheckAuth("anna", "two"))
	assert.Equal(t, 1, r.verified.Len())
}

func TestFileRepoReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users.yml")
	writeUsers(t, path, newUser(t, "anna", "one", false))

	r := NewFileRepo(path)
	require.NoError(t, r.Start())
	defer r.Stop()

	assert.True(t, r.CheckAuth("anna", "one"))

	writeUsers(t, path, newUser(t, "anna", "new", false), newUser(t, "bob", "two", false))

	require.Eventually(t, func() bool {
		return r.Len() == 2
	}, time.Second*5, time.Millisecond*20)

	assert.False(t, r.CheckAuth("anna", "one"))
	assert.True(t, r.CheckAuth("anna", "new"))
	assert.True(t, r.CheckAuth("bob", "two"))
}

func TestState(t *testing.T) {
	s := NewState()

	var seen []string

	cancel := s.OnChange(func(user string) {
		seen = append(seen, user)
	})

	s.SignIn("anna")
	s.SignIn("anna")
	s.SignIn("bob")
	s.SignOut()

	assert.Equal(t, []string{"", "anna", "bob", ""}, seen)
	assert.Equal(t, "", s.CurrentUser())

	cancel()
	s.SignIn("anna")

	assert.Len(t, seen, 4)
	assert.Equal(t, "anna", s.CurrentUser())
}
