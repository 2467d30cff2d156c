package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/ticket-resolution/internal/domain"
	"github.com/spec-kit/ticket-resolution/internal/workflow"
)

// MemoryTicketRepository keeps ticket state in memory. It backs tests and
// DSN-less development runs with the same revision semantics as postgres.
type MemoryTicketRepository struct {
	mu      sync.RWMutex
	tickets map[string]domain.Ticket
}

// NewMemoryTicketRepository constructs an empty repository.
func NewMemoryTicketRepository() *MemoryTicketRepository {
	return &MemoryTicketRepository{tickets: make(map[string]domain.Ticket)}
}

// cloneTicket deep-copies a ticket through its JSON form, the same
// serialization boundary the postgres JSONB column imposes. Stored state
// and caller state never share artifact pointers, so a mutation made
// before a failed commit cannot leak into the repository.
func cloneTicket(ticket *domain.Ticket) domain.Ticket {
	encoded, err := json.Marshal(ticket)
	if err != nil {
		return *ticket
	}
	var copied domain.Ticket
	if err := json.Unmarshal(encoded, &copied); err != nil {
		return *ticket
	}
	return copied
}

// Create stores a new ticket.
func (r *MemoryTicketRepository) Create(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tickets[ticket.ID]; exists {
		return fmt.Errorf("ticket %s already exists", ticket.ID)
	}
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

// GetByID rehydrates a ticket snapshot.
func (r *MemoryTicketRepository) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := cloneTicket(&ticket)
	return &copied, nil
}

// Update applies the compare-and-swap on the stored revision.
func (r *MemoryTicketRepository) Update(_ context.Context, ticket *domain.Ticket, expectedRevision int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.tickets[ticket.ID]
	if !ok {
		return pgx.ErrNoRows
	}
	if current.Revision != expectedRevision {
		return fmt.Errorf("%w: ticket %s expected revision %d", workflow.ErrStaleRevision, ticket.ID, expectedRevision)
	}
	ticket.UpdatedAt = time.Now().UTC()
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

// List returns tickets filtered by stage, most recently updated first.
func (r *MemoryTicketRepository) List(_ context.Context, stage domain.WorkflowStage, limit, offset int) ([]domain.Ticket, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []domain.Ticket
	for _, ticket := range r.tickets {
		if stage != "" && ticket.Stage != stage {
			continue
		}
		result = append(result, cloneTicket(&ticket))
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].UpdatedAt.Equal(result[j].UpdatedAt) {
			return result[i].UpdatedAt.After(result[j].UpdatedAt)
		}
		return result[i].ID < result[j].ID
	})

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(result) {
		return nil, nil
	}
	end := offset + limit
	if end > len(result) {
		end = len(result)
	}
	return result[offset:end], nil
}
