package domain

// User is a directory entry. Gatekeeper only ever reads users.
type User struct {
	ID       string
	Username string
	IsAdmin  bool

	// ProjectAccess maps a project id to the permissions held on it.
	ProjectAccess map[string][]string
}
