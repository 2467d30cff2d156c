package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-resolution/internal/domain"
)

// CachedTicketRepository decorates a repository with a redis snapshot
// cache. Reads go through the cache; every write invalidates the entry so
// a resumed workflow never acts on a stale cached snapshot. Cache failures
// are logged and fall through to the inner repository.
type CachedTicketRepository struct {
	inner  TicketRepository
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedTicketRepository wraps inner with a redis cache.
func NewCachedTicketRepository(inner TicketRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *CachedTicketRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedTicketRepository{inner: inner, client: client, ttl: ttl, logger: logger}
}

func (r *CachedTicketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if err := r.inner.Create(ctx, ticket); err != nil {
		return err
	}
	r.invalidate(ctx, ticket.ID)
	return nil
}

func (r *CachedTicketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	if cached := r.cached(ctx, id); cached != nil {
		return cached, nil
	}
	ticket, err := r.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache(ctx, ticket)
	return ticket, nil
}

func (r *CachedTicketRepository) Update(ctx context.Context, ticket *domain.Ticket, expectedRevision int64) error {
	// Invalidate before and after: a reader between the store write and the
	// second invalidation may re-cache the fresh row, never the stale one.
	r.invalidate(ctx, ticket.ID)
	if err := r.inner.Update(ctx, ticket, expectedRevision); err != nil {
		return err
	}
	r.invalidate(ctx, ticket.ID)
	return nil
}

func (r *CachedTicketRepository) List(ctx context.Context, stage domain.WorkflowStage, limit, offset int) ([]domain.Ticket, error) {
	return r.inner.List(ctx, stage, limit, offset)
}

func (r *CachedTicketRepository) cached(ctx context.Context, id string) *domain.Ticket {
	if r.client == nil {
		return nil
	}
	payload, err := r.client.Get(ctx, cacheKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.logger.Debug("ticket cache read failed", zap.String("ticket_id", id), zap.Error(err))
		}
		return nil
	}
	var ticket domain.Ticket
	if err := json.Unmarshal(payload, &ticket); err != nil {
		r.logger.Warn("ticket cache entry corrupt", zap.String("ticket_id", id), zap.Error(err))
		r.invalidate(ctx, id)
		return nil
	}
	return &ticket
}

func (r *CachedTicketRepository) cache(ctx context.Context, ticket *domain.Ticket) {
	if r.client == nil {
		return
	}
	payload, err := json.Marshal(ticket)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, cacheKey(ticket.ID), payload, r.ttl).Err(); err != nil {
		r.logger.Debug("ticket cache write failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
	}
}

func (r *CachedTicketRepository) invalidate(ctx context.Context, id string) {
	if r.client == nil {
		return
	}
	if err := r.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		r.logger.Debug("ticket cache invalidation failed", zap.String("ticket_id", id), zap.Error(err))
	}
}

func cacheKey(id string) string {
	return "ticket:" + id
}
