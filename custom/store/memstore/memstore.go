// Package memstore keeps the whole POS state in process memory. Transactions
// are serialized behind one mutex and rolled back by restoring a snapshot, so
// it is safe for concurrent use and behaves like a serializable database.
// It backs `store: memory` deployments and the service tests.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"restaurant_pos/custom/store"
	"restaurant_pos/model"
)

type state struct {
	nextID     uint
	categories map[uint]model.Category
	users      map[uint]model.User
	menu       map[uint]model.MenuItem
	tables     map[uint]model.Table
	orders     map[uint]model.Order
	items      map[uint]model.OrderItem
	payments   map[uint]model.Payment
}

func newState() *state {
	return &state{
		categories: map[uint]model.Category{},
		users:      map[uint]model.User{},
		menu:       map[uint]model.MenuItem{},
		tables:     map[uint]model.Table{},
		orders:     map[uint]model.Order{},
		items:      map[uint]model.OrderItem{},
		payments:   map[uint]model.Payment{},
	}
}

func copyMap[T any](src map[uint]T) map[uint]T {
	dst := make(map[uint]T, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *state) clone() *state {
	return &state{
		nextID:     s.nextID,
		categories: copyMap(s.categories),
		users:      copyMap(s.users),
		menu:       copyMap(s.menu),
		tables:     copyMap(s.tables),
		orders:     copyMap(s.orders),
		items:      copyMap(s.items),
		payments:   copyMap(s.payments),
	}
}

func (s *state) id() uint {
	s.nextID++
	return s.nextID
}

type database struct {
	mu   sync.Mutex
	data *state
	now  func() time.Time
}

type Store struct {
	db   *database
	inTx bool
}

func New() *Store {
	return &Store{db: &database{data: newState(), now: time.Now}}
}

// WithClock replaces the timestamp source used for created/updated times.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.db.now = now
	return s
}

func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.db.mu.Lock()
	return s.db.mu.Unlock
}

func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := s.db.data.clone()
	err := fn(&Store{db: s.db, inTx: true})
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		s.db.data = snapshot
	}
	return err
}

func (s *Store) Categories() store.CategoryRepository { return &categoryRepo{s} }
func (s *Store) Users() store.UserRepository { return &userRepo{s} }
func (s *Store) Menu() store.MenuRepository { return &menuRepo{s} }
func (s *Store) Tables() store.TableRepository { return &tableRepo{s} }
func (s *Store) Orders() store.OrderRepository { return &orderRepo{s} }
func (s *Store) Payments() store.PaymentRepository { return &paymentRepo{s} }
func (s *Store) Revenue() store.RevenueRepository { return &revenueRepo{s} }

func visible(deletedAt *time.Time, opts store.QueryOptions) bool {
	return opts.IncludeDeleted || deletedAt == nil
}

func window[T any](rows []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(rows) {
			return rows[:0]
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func sortedIDs[T any](rows map[uint]T) []uint {
	ids := make([]uint, 0, len(rows))
	for id := range rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func timePtr(t time.Time) *time.Time {
	return &t
}
