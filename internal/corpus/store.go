package corpus

import (
	"errors"
	"sort"
	"sync"

	"github.com/spec-kit/ticket-resolution/internal/domain"
)

// ErrRecordNotFound is returned when a provenance pointer does not resolve.
var ErrRecordNotFound = errors.New("corpus record not found")

// DirectoryRecord is a directory entry offered to the retrieval engine:
// either a customer or a product, with the searchable name/alias surface
// flattened out.
type DirectoryRecord struct {
	ID      string
	Kind    DirectoryKind
	Name    string
	Aliases []string
	Since   int64 // unix seconds, used for recency tie-breaks
}

// DirectoryKind distinguishes directory entries.
type DirectoryKind string

const (
	DirectoryCustomer DirectoryKind = "customer"
	DirectoryProduct  DirectoryKind = "product"
)

// Store is the corpus boundary: three read-mostly collections plus the
// append point for newly closed tickets.
type Store interface {
	LookupDirectory() ([]DirectoryRecord, error)
	SearchHistory(excludeTicketID string) ([]domain.ClosingSummary, error)
	LookupManual(productID string) ([]domain.ManualSection, error)
	AppendHistory(summary domain.ClosingSummary) error
	Resolve(source domain.SourceKind, id string) error
}

// MemoryStore holds the three collections in memory. Reads against the
// history collection are excluded while an append holds the write lock;
// readers always observe either the pre-append or the fully appended
// snapshot.
type MemoryStore struct {
	mu        sync.RWMutex
	customers []domain.CustomerRecord
	products  []domain.ProductRecord
	manuals   []domain.ManualSection
	history   []domain.ClosingSummary
}

// NewMemoryStore builds a store from loaded collections.
func NewMemoryStore(customers []domain.CustomerRecord, products []domain.ProductRecord, manuals []domain.ManualSection, history []domain.ClosingSummary) *MemoryStore {
	return &MemoryStore{
		customers: customers,
		products:  products,
		manuals:   manuals,
		history:   history,
	}
}

// LookupDirectory returns the flattened customer and product directory.
func (s *MemoryStore) LookupDirectory() ([]DirectoryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]DirectoryRecord, 0, len(s.customers)+len(s.products))
	for _, c := range s.customers {
		records = append(records, DirectoryRecord{
			ID:      c.ID,
			Kind:    DirectoryCustomer,
			Name:    c.Name,
			Aliases: c.Aliases,
			Since:   c.CustomerSince.Unix(),
		})
	}
	for _, p := range s.products {
		records = append(records, DirectoryRecord{
			ID:      p.SKU,
			Kind:    DirectoryProduct,
			Name:    p.Name,
			Aliases: p.Aliases,
		})
	}
	return records, nil
}

// SearchHistory returns a snapshot copy of the history collection, the
// ticket being processed excluded.
func (s *MemoryStore) SearchHistory(excludeTicketID string) ([]domain.ClosingSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.ClosingSummary, 0, len(s.history))
	for _, summary := range s.history {
		if summary.TicketID == excludeTicketID {
			continue
		}
		result = append(result, summary)
	}
	return result, nil
}

// LookupManual returns the manual sections of a single product, never
// crossing into other products.
func (s *MemoryStore) LookupManual(productID string) ([]domain.ManualSection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sections []domain.ManualSection
	for _, section := range s.manuals {
		if section.ProductID == productID {
			sections = append(sections, section)
		}
	}
	sort.Slice(sections, func(i, j int) bool { return sections[i].ID < sections[j].ID })
	return sections, nil
}

// AppendHistory commits a closing summary. A ticket owns at most one
// entry; an append for a ticket that already has one replaces it, so a
// close retried after a failed stage commit converges instead of
// erroring. The write lock covers only the append itself.
func (s *MemoryStore) AppendHistory(summary domain.ClosingSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.history {
		if existing.TicketID == summary.TicketID {
			s.history[i] = summary
			return nil
		}
	}
	s.history = append(s.history, summary)
	return nil
}

// Resolve verifies that a (source, id) provenance pointer refers to a
// retrievable record.
func (s *MemoryStore) Resolve(source domain.SourceKind, id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	switch source {
	case domain.SourceDirectory:
		for _, c := range s.customers {
			if c.ID == id {
				return nil
			}
		}
		for _, p := range s.products {
			if p.SKU == id {
				return nil
			}
		}
	case domain.SourceHistory:
		for _, summary := range s.history {
			if summary.TicketID == id {
				return nil
			}
		}
	case domain.SourceManual:
		for _, section := range s.manuals {
			if section.ID == id {
				return nil
			}
		}
	}
	return ErrRecordNotFound
}
