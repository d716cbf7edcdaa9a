package domain

import (
	"database/sql/driver"
	"fmt"
)

// SystemActorID is the stored identity of the automated moderator
const SystemActorID = "system"

// ActorKind distinguishes human moderators/reporters from the system
type ActorKind string

const (
	ActorHuman  ActorKind = "human"
	ActorSystem ActorKind = "system"
)

// Actor is either Human(id) or System.
// 저장 시에는 "system" 또는 사용자 ID 문자열 하나로 기록된다.
type Actor struct {
	Kind ActorKind `json:"kind"`
	ID   string    `json:"id"`
}

// Human returns an actor for the given user id
func Human(id string) Actor {
	return Actor{Kind: ActorHuman, ID: id}
}

// System returns the automated moderator actor
func System() Actor {
	return Actor{Kind: ActorSystem, ID: SystemActorID}
}

// IsSystem reports whether the actor is the automated moderator
func (a Actor) IsSystem() bool {
	return a.Kind == ActorSystem
}

// Valid reports whether the actor carries a usable identity.
// A human may not claim the reserved system id.
func (a Actor) Valid() bool {
	switch a.Kind {
	case ActorSystem:
		return true
	case ActorHuman:
		return a.ID != "" && a.ID != SystemActorID
	}
	return false
}

func (a Actor) String() string {
	if a.IsSystem() {
		return SystemActorID
	}
	return a.ID
}

// Value implements driver.Valuer
func (a Actor) Value() (driver.Value, error) {
	return a.String(), nil
}

// Scan implements sql.Scanner
func (a *Actor) Scan(src interface{}) error {
	var s string
	switch v := src.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	case nil:
		*a = Actor{}
		return nil
	default:
		return fmt.Errorf("actor: unsupported scan type %T", src)
	}
	if s == SystemActorID {
		*a = System()
		return nil
	}
	*a = Human(s)
	return nil
}

// GormDataType stores actors in a plain string column
func (Actor) GormDataType() string {
	return "string"
}
