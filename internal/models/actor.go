package models

// Actor identifies who performs an operation. Handlers build it from JWT
// claims; background callers use SystemActor.
type Actor struct {
	UserID    string
	Role      UserRole
	IP        string
	UserAgent string
}

// SystemActor is used by scheduled and webhook-driven work.
var SystemActor = Actor{Role: RoleSystem}

// UserIDPtr returns the actor's user id, or nil for system work.
func (a Actor) UserIDPtr() *string {
	if a.UserID == "" {
		return nil
	}
	id := a.UserID
	return &id
}
