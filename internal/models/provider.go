package models

import (
	"strings"
	"time"
)

// Provider is one card of the provider search: a prestador row with its
// services, home city and average rating
type Provider struct {
	ID        string   `json:"id_prestador"`
	Name      string   `json:"nome"`
	TradeName string   `json:"nome_fantasia,omitempty"`
	Services  []string `json:"servicos"`
	City      string   `json:"cidade"`
	Rating    float64  `json:"media_nota"`
}

// DisplayName prefers the trade name when the provider has one
func (p Provider) DisplayName() string {
	if name := strings.TrimSpace(p.TradeName); name != "" {
		return name
	}
	return p.Name
}

// Review represents a row of the avaliacao table. A client reviews a
// provider at most once.
type Review struct {
	ProviderID string    `json:"id_prestador"`
	ClientID   string    `json:"id_cliente"`
	ClientName string    `json:"nome_cliente"`
	Rating     int       `json:"nota"`
	Comment    string    `json:"descricao"`
	CreatedAt  time.Time `json:"data_avalicao"`
}

// ReviewRequest is the payload for reviewing a provider
type ReviewRequest struct {
	Rating  int    `json:"nota" validate:"min=1,max=5"`
	Comment string `json:"descricao" validate:"required"`
}

// RatingSummary is the review header of a provider page
type RatingSummary struct {
	Average float64  `json:"media_nota"`
	Count   int      `json:"total"`
	Reviews []Review `json:"avaliacoes"`
}
