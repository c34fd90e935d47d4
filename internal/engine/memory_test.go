package engine

import (
	"context"
	"sync"

	"github.com/opinionlabs/settlement-engine/internal/engine/ident"
)

// memoryStore is an in-memory test double implementing MarketStore,
// TicketStore, EscrowStore, and EventSink, grounded on the same
// map-plus-mutex shape as the engine's own lockRegistry.
type memoryStore struct {
	mu      sync.Mutex
	markets map[ident.ID]*Market
	tickets map[ident.ID]*Ticket
	escrows map[ident.ID]*Escrow
	events  []Event
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		markets: make(map[ident.ID]*Market),
		tickets: make(map[ident.ID]*Ticket),
		escrows: make(map[ident.ID]*Escrow),
	}
}

func (s *memoryStore) GetMarket(_ context.Context, id ident.ID) (*Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.markets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memoryStore) PutMarket(_ context.Context, m *Market) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.markets[m.ID] = &cp
	return nil
}

func (s *memoryStore) GetTicket(_ context.Context, id ident.ID) (*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memoryStore) PutTicket(_ context.Context, t *Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.tickets[t.ID] = &cp
	return nil
}

func (s *memoryStore) ListTicketsByMarket(_ context.Context, marketID ident.ID) ([]*Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Ticket
	for _, t := range s.tickets {
		if t.MarketID == marketID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryStore) GetEscrow(_ context.Context, id ident.ID) (*Escrow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.escrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (s *memoryStore) PutEscrow(_ context.Context, e *Escrow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *e
	s.escrows[e.ID] = &cp
	return nil
}

func (s *memoryStore) Append(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}
