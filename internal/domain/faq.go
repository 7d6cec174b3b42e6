package domain

import (
	"time"

	pgvector "github.com/pgvector/pgvector-go"
)

// FAQ es una pregunta frecuente; Embedding puede estar vacio hasta indexarla.
type FAQ struct {
	ID        string           `json:"id"`
	Question  string           `json:"question"`
	Answer    string           `json:"answer"`
	Category  string           `json:"category,omitempty"`
	Embedding *pgvector.Vector `json:"-"`
	CreatedAt time.Time        `json:"created_at"`
}
