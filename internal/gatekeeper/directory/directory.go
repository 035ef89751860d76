// Package directory is the read-only user directory tokens are issued
// against. Users are listed in a YAML file:
//
//	users:
//	  - id: "42"
//	    username: alice
//	    projects:
//	      phs000178: [read, read-storage]
//	  - id: "1"
//	    username: root
//	    is_admin: true
package directory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/aussiebroadwan/gatekeeper/internal/gatekeeper/domain"
	"gopkg.in/yaml.v3"
)

var ErrUserNotFound = errors.New("directory: user not found")

// Directory resolves users by name or id.
type Directory interface {
	FindUserByUsername(ctx context.Context, username string) (domain.User, error)
	FindUserByID(ctx context.Context, id string) (domain.User, error)
}

type fileUser struct {
	ID       string              `yaml:"id"`
	Username string              `yaml:"username"`
	IsAdmin  bool                `yaml:"is_admin"`
	Projects map[string][]string `yaml:"projects"`
}

type usersFile struct {
	Users []fileUser `yaml:"users"`
}

// Static is an in-memory Directory.
type Static struct {
	byID   map[string]domain.User
	byName map[string]string
}

var _ Directory = (*Static)(nil)

// NewStatic builds a directory from users. ids and usernames must be unique
// and non-empty.
func NewStatic(users ...domain.User) (*Static, error) {
	d := &Static{
		byID:   make(map[string]domain.User, len(users)),
		byName: make(map[string]string, len(users)),
	}
	for _, u := range users {
		switch {
		case u.ID == "" || u.Username == "":
			return nil, fmt.Errorf("directory: user %q needs both id and username", u.ID+u.Username)
		case d.byID[u.ID].ID != "":
			return nil, fmt.Errorf("directory: duplicate user id %q", u.ID)
		case d.byName[u.Username] != "":
			return nil, fmt.Errorf("directory: duplicate username %q", u.Username)
		}
		d.byID[u.ID] = u
		d.byName[u.Username] = u.ID
	}
	return d, nil
}

// LoadFile reads a users file. An empty path yields an empty directory.
func LoadFile(path string) (*Static, error) {
	if path == "" {
		return NewStatic()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("directory: read users file: %w", err)
	}

	var f usersFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("directory: parse users file: %w", err)
	}

	users := make([]domain.User, 0, len(f.Users))
	for _, u := range f.Users {
		users = append(users, domain.User{
			ID:            u.ID,
			Username:      u.Username,
			IsAdmin:       u.IsAdmin,
			ProjectAccess: u.Projects,
		})
	}
	return NewStatic(users...)
}

func (d *Static) FindUserByUsername(_ context.Context, username string) (domain.User, error) {
	id, ok := d.byName[username]
	if !ok {
		return domain.User{}, fmt.Errorf("%w: %q", ErrUserNotFound, username)
	}
	return cloneUser(d.byID[id]), nil
}

func (d *Static) FindUserByID(_ context.Context, id string) (domain.User, error) {
	u, ok := d.byID[id]
	if !ok {
		return domain.User{}, fmt.Errorf("%w: id %q", ErrUserNotFound, id)
	}
	return cloneUser(u), nil
}

// Len reports the number of users.
func (d *Static) Len() int { return len(d.byID) }

// cloneUser keeps callers from mutating the directory through the project
// map.
func cloneUser(u domain.User) domain.User {
	if u.ProjectAccess != nil {
		projects := make(map[string][]string, len(u.ProjectAccess))
		for k, v := range u.ProjectAccess {
			projects[k] = slices.Clone(v)
		}
		u.ProjectAccess = projects
	}
	return u
}
