package models

// Actor is the authenticated identity behind a request. A nil *Actor is an
// anonymous caller.
type Actor struct {
	ID          string
	Permissions []string
	Admin       bool
}

// HasPermission reports whether the actor holds any of perms.
func (a *Actor) HasPermission(perms ...string) bool {
	if a == nil {
		return false
	}
	if a.Admin {
		return true
	}
	for _, held := range a.Permissions {
		for _, p := range perms {
			if held == p {
				return true
			}
		}
	}
	return false
}

// IDRef returns the actor id for createdBy/updatedBy, nil when anonymous.
func (a *Actor) IDRef() *string {
	if a == nil || a.ID == "" {
		return nil
	}
	id := a.ID
	return &id
}
