package auth

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"github.com/consertja/consertja/internal/database"
	"github.com/consertja/consertja/internal/models"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// AccessFinder looks up acesso rows
type AccessFinder interface {
	GetAccessByCPF(ctx context.Context, cpf string) (*models.Access, error)
}

// Authenticate checks a CPF and password against acesso and returns the
// session they open. The CPF is tried as typed and then with the
// punctuation stripped.
func Authenticate(ctx context.Context, finder AccessFinder, cpf, password string) (models.Session, error) {
	access, err := findAccess(ctx, finder, cpf)
	if errors.Is(err, database.ErrAccessNotFound) {
		return models.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return models.Session{}, err
	}

	if !CheckPasswordHash(password, access.PasswordHash) {
		return models.Session{}, ErrInvalidCredentials
	}

	role, err := models.ParseRole(access.Type)
	if err != nil {
		log.Warn("Access %s has unknown type %q", access.Login, access.Type)
		return models.Session{}, err
	}

	return models.Session{UserID: access.Login, Role: role}, nil
}

func findAccess(ctx context.Context, finder AccessFinder, cpf string) (*models.Access, error) {
	cpf = strings.TrimSpace(cpf)
	access, err := finder.GetAccessByCPF(ctx, cpf)
	if !errors.Is(err, database.ErrAccessNotFound) {
		return access, err
	}

	digits := DigitsOnly(cpf)
	if digits == cpf || digits == "" {
		return nil, err
	}
	return finder.GetAccessByCPF(ctx, digits)
}

// DigitsOnly strips everything but digits from a CPF
func DigitsOnly(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}
