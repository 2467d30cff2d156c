package domain

import "time"

// CustomerRecord is a static directory entity. Immutable during a ticket's
// lifetime; owned by the corpus store.
type CustomerRecord struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Aliases       []string  `json:"aliases,omitempty"`
	ProductSKUs   []string  `json:"product_skus,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CustomerSince time.Time `json:"customer_since"`
}

// ProductRecord describes a catalog product.
type ProductRecord struct {
	SKU            string   `json:"sku"`
	Name           string   `json:"name"`
	Aliases        []string `json:"aliases,omitempty"`
	KnownIssueTags []string `json:"known_issue_tags,omitempty"`
}

// ManualSection is one section of a product manual. Sections belong to
// exactly one product and manual search never crosses products.
type ManualSection struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
}

// ClosingSummary is the close stage artifact, appended to the history
// corpus so future research can retrieve it. Written exactly once.
type ClosingSummary struct {
	TicketID         string    `json:"ticket_id"`
	ProductID        string    `json:"product_id"`
	CustomerID       string    `json:"customer_id"`
	ProblemStatement string    `json:"problem_statement"`
	RootCause        string    `json:"root_cause"`
	ResolutionSteps  []string  `json:"resolution_steps"`
	Tags             []string  `json:"tags"`
	ClosedAt         time.Time `json:"closed_at"`
}
