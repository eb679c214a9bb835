package model

import "time"

// Party is a vendor/merchant node in the knowledge graph. NormalizedName is
// the entity-resolution key: two raw names that normalize identically are
// the same party.
type Party struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	NormalizedName string    `json:"normalized_name"`
	PartyType      string    `json:"party_type"`
	CreatedAt      time.Time `json:"created_at"`
}

// Transaction is a financial edge linking a document to a party.
type Transaction struct {
	ID              string         `json:"id"`
	DocumentID      string         `json:"document_id"`
	PartyID         string         `json:"party_id,omitempty"`
	Amount          float64        `json:"amount"`
	Currency        string         `json:"currency"`
	TransactionDate *time.Time     `json:"transaction_date,omitempty"`
	TransactionType string         `json:"transaction_type"`
	Description     string         `json:"description,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}
