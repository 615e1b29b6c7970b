// models/event.go
package models

import (
	"time"
)

type UserType string

const (
	UserTypeAnonymous  UserType = "anonymous"
	UserTypeRegistered UserType = "registered"
)

func (t UserType) Valid() bool {
	return t == UserTypeAnonymous || t == UserTypeRegistered
}

// Label is the human readable name used in exports.
func (t UserType) Label() string {
	if t == UserTypeRegistered {
		return "Registrado"
	}
	return "Anónimo"
}

// InteractionEvent is one recorded interaction with a UI component.
// UserRef is a weak reference: it is only resolved at read time.
type InteractionEvent struct {
	ID            string    `json:"_id"`
	ComponentName string    `json:"nombre"`
	Action        string    `json:"accion"`
	Timestamp     time.Time `json:"timestamp"`
	UserType      UserType  `json:"tipo_usuario"`
	UserRef       *string   `json:"usuario,omitempty"`
}

// TrackRequest is the body of POST /components/track.
type TrackRequest struct {
	ComponentName string   `json:"nombre" binding:"notblank"`
	Action        string   `json:"accion" binding:"notblank"`
	UserType      UserType `json:"tipo_usuario" binding:"omitempty,oneof=anonymous registered"`
	UserRef       string   `json:"usuario" binding:"omitempty,uuid"`
}

type ComponentCount struct {
	Component string `json:"_id"`
	Count     uint64 `json:"count"`
}

type ComponentAction struct {
	Component string `json:"componente"`
	Action    string `json:"accion"`
}

type ActionCount struct {
	Key   ComponentAction `json:"_id"`
	Count uint64          `json:"count"`
}

type UserTypeCount struct {
	UserType UserType `json:"_id"`
	Count    uint64   `json:"count"`
}

// StatsSnapshot is computed on demand from the whole event set and never stored.
type StatsSnapshot struct {
	Total       uint64           `json:"totalInteracciones"`
	ByComponent []ComponentCount `json:"porComponente"`
	ByAction    []ActionCount    `json:"porAccion"`
	ByUserType  []UserTypeCount  `json:"porTipoUsuario"`
}

// PagedEvent is an event joined with the referenced user's display name.
type PagedEvent struct {
	ID            string    `json:"id"`
	ComponentName string    `json:"nombre_componente"`
	Action        string    `json:"accion"`
	Timestamp     time.Time `json:"timestamp"`
	UserType      UserType  `json:"tipo_usuario"`
	UserName      *string   `json:"nombre_usuario"`
}

type Pagination struct {
	Page        int    `json:"page"`
	Limit       int    `json:"limit"`
	Total       uint64 `json:"total"`
	TotalPages  int    `json:"totalPages"`
	HasNextPage bool   `json:"hasNextPage"`
	HasPrevPage bool   `json:"hasPrevPage"`
}

type PagedEvents struct {
	Data       []PagedEvent `json:"data"`
	Pagination Pagination   `json:"pagination"`
}

type ExportUser struct {
	ID    string `json:"_id"`
	Name  string `json:"nombre"`
	Email string `json:"email"`
}

// ExportRecord is an event joined with the referenced user's name and email.
type ExportRecord struct {
	ID            string      `json:"_id"`
	ComponentName string      `json:"nombre"`
	Action        string      `json:"accion"`
	Timestamp     time.Time   `json:"timestamp"`
	UserType      UserType    `json:"tipo_usuario"`
	User          *ExportUser `json:"usuario,omitempty"`
}
