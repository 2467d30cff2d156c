package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-resolution/internal/domain"
	"github.com/spec-kit/ticket-resolution/internal/workflow"
)

// TicketRepository persists workflow ticket state. Update performs an
// optimistic concurrency check: the caller passes the revision it loaded,
// and a mismatch surfaces workflow.ErrStaleRevision so the caller reloads
// and retries. This is what makes the approval wait resumable across
// process restarts.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	Update(ctx context.Context, ticket *domain.Ticket, expectedRevision int64) error
	List(ctx context.Context, stage domain.WorkflowStage, limit, offset int) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the postgres-backed repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

// artifacts is the JSONB column payload holding all stage outputs.
type artifacts struct {
	Findings  *domain.ResearchFindings `json:"findings,omitempty"`
	Plan      *domain.Plan             `json:"plan,omitempty"`
	Execution *domain.ExecutionRecord  `json:"execution,omitempty"`
	Summary   *domain.ClosingSummary   `json:"summary,omitempty"`
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	payload, err := marshalArtifacts(ticket)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO tickets (id, subject, description, product_id, customer_id, stage, revision, artifacts)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.Subject,
		ticket.Description,
		ticket.ProductID,
		ticket.CustomerID,
		ticket.Stage,
		ticket.Revision,
		payload,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket, expectedRevision int64) error {
	payload, err := marshalArtifacts(ticket)
	if err != nil {
		return err
	}
	const query = `
        UPDATE tickets SET stage=$1, revision=$2, artifacts=$3, closed_at=$4, updated_at=NOW()
        WHERE id=$5 AND revision=$6`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.Stage,
		ticket.Revision,
		payload,
		ticket.ClosedAt,
		ticket.ID,
		expectedRevision,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return fmt.Errorf("%w: ticket %s expected revision %d", workflow.ErrStaleRevision, ticket.ID, expectedRevision)
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	const query = `
        SELECT id, subject, description, product_id, customer_id, stage, revision, artifacts,
               created_at, updated_at, closed_at
        FROM tickets WHERE id=$1`
	return scanTicket(r.pool.QueryRow(ctx, query, id))
}

func (r *ticketRepository) List(ctx context.Context, stage domain.WorkflowStage, limit, offset int) ([]domain.Ticket, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
        SELECT id, subject, description, product_id, customer_id, stage, revision, artifacts,
               created_at, updated_at, closed_at
        FROM tickets`
	args := []any{}
	if stage != "" {
		query += ` WHERE stage=$1`
		args = append(args, stage)
	}
	query += fmt.Sprintf(` ORDER BY updated_at DESC LIMIT %d OFFSET %d`, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func marshalArtifacts(ticket *domain.Ticket) ([]byte, error) {
	return json.Marshal(artifacts{
		Findings:  ticket.Findings,
		Plan:      ticket.Plan,
		Execution: ticket.Execution,
		Summary:   ticket.Summary,
	})
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var ticket domain.Ticket
	var payload []byte
	if err := row.Scan(
		&ticket.ID,
		&ticket.Subject,
		&ticket.Description,
		&ticket.ProductID,
		&ticket.CustomerID,
		&ticket.Stage,
		&ticket.Revision,
		&payload,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	var stored artifacts
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &stored); err != nil {
			return nil, err
		}
	}
	ticket.Findings = stored.Findings
	ticket.Plan = stored.Plan
	ticket.Execution = stored.Execution
	ticket.Summary = stored.Summary
	return &ticket, nil
}
