package models

import (
	"errors"
	"strings"
)

var ErrUnknownRole = errors.New("unknown user type")

// Role is the side of the marketplace a user acts on. The values are the
// ones stored in mensagem.enviado_por.
type Role string

const (
	RoleClient   Role = "cliente"
	RoleProvider Role = "prestador"
)

// ParseRole normalises acesso.tipo_login into a Role
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "prestador", "prestador de serviço", "provider":
		return RoleProvider, nil
	case "cliente", "client":
		return RoleClient, nil
	default:
		return "", ErrUnknownRole
	}
}

// Valid reports whether r is one of the two known roles
func (r Role) Valid() bool {
	return r == RoleClient || r == RoleProvider
}

// Counterpart returns the role on the other side of a conversation
func (r Role) Counterpart() Role {
	if r == RoleProvider {
		return RoleClient
	}
	return RoleProvider
}

// Session is the identity the app is acting as. Role may be empty when it
// has not been resolved yet.
type Session struct {
	UserID string `json:"user_id"`
	Role   Role   `json:"role,omitempty"`
}

// Authenticated reports whether an identity is known
func (s Session) Authenticated() bool {
	return s.UserID != ""
}

// Access represents a row of the acesso table
type Access struct {
	Login        string `json:"login"`
	CPF          string `json:"cpf"`
	PasswordHash string `json:"-"` // Never send to client
	Type         string `json:"tipo_login"`
}

// LoginRequest contains data needed for login
type LoginRequest struct {
	CPF      string `json:"cpf" binding:"required"`
	Password string `json:"password" binding:"required"`
}
