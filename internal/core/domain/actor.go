package domain

import "github.com/google/uuid"

// ActorType identifies who performed an action.
type ActorType string

const (
	ActorVendor ActorType = "vendor"
	ActorAdmin  ActorType = "admin"
	ActorSystem ActorType = "system"
)

// Actor is the authenticated caller of a core operation.
type Actor struct {
	ID   uuid.UUID
	Type ActorType
}

// SystemActor performs automatic transitions such as auto-approval.
var SystemActor = Actor{ID: uuid.Nil, Type: ActorSystem}

func (a Actor) IsAdmin() bool  { return a.Type == ActorAdmin }
func (a Actor) IsVendor() bool { return a.Type == ActorVendor }
