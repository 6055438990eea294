// Package memory is an in-process implementation of repository.Store used by
// tests and by STORE_DRIVER=memory. Transactions run one at a time against a
// copy of the data that replaces the live copy on commit, so a failed
// operation leaves nothing behind.
package memory

import (
	"context"
	"sync"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository"
)

// Store implements repository.Store.
type Store struct {
	mu   sync.Mutex
	data *data
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{data: newData()}
}

// InTx runs fn on a private copy of the data and publishes the copy only when
// fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(r repository.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.data.clone()
	if err := fn(newRepos(&scope{lock: noLock{}, get: func() *data { return work }})); err != nil {
		return err
	}
	s.data = work
	return nil
}

// Repos returns repositories that lock the store per call.
func (s *Store) Repos() repository.Repos {
	return newRepos(&scope{lock: &s.mu, get: func() *data { return s.data }})
}

// PutUser adds or replaces a directory user.
func (s *Store) PutUser(u *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *u
	s.data.users[u.ID] = &c
}

// PutSupplier adds or replaces a supplier.
func (s *Store) PutSupplier(sp *domain.Supplier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data.suppliers[sp.ID]; !ok {
		s.data.supplierIDs = append(s.data.supplierIDs, sp.ID)
	}
	c := *sp
	s.data.suppliers[sp.ID] = &c
}

// scope tells the repositories which data to use and whether to lock it.
// Inside InTx the store mutex is already held.
type scope struct {
	lock sync.Locker
	get  func() *data
}

func (sc *scope) with(fn func(d *data)) {
	sc.lock.Lock()
	defer sc.lock.Unlock()
	fn(sc.get())
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

func newRepos(sc *scope) repository.Repos {
	return repository.Repos{
		Orders:         &orderRepo{sc},
		Quotes:         &quoteRepo{sc},
		PurchaseOrders: &purchaseOrderRepo{sc},
		Attachments:    &attachmentRepo{sc},
		Audit:          &auditRepo{sc},
		Notifications:  &notificationRepo{sc},
		Users:          &userRepo{sc},
		Suppliers:      &supplierRepo{sc},
		Sequences:      &sequenceRepo{sc},
	}
}

type data struct {
	orders        map[string]*domain.ServiceOrder
	orderIDs      []string
	quotes        map[string]*domain.Quote
	quoteIDs      []string
	purchases     map[string]*domain.PurchaseOrder
	purchaseIDs   []string
	attachments   map[string]*domain.Attachment
	attachmentIDs []string
	audit         []*domain.AuditEntry
	notifications []*domain.Notification
	users         map[string]*domain.User
	suppliers     map[string]*domain.Supplier
	supplierIDs   []string
	sequences     map[sequenceKey]int
}

type sequenceKey struct {
	prefix string
	year   int
}

func newData() *data {
	return &data{
		orders:      map[string]*domain.ServiceOrder{},
		quotes:      map[string]*domain.Quote{},
		purchases:   map[string]*domain.PurchaseOrder{},
		attachments: map[string]*domain.Attachment{},
		users:       map[string]*domain.User{},
		suppliers:   map[string]*domain.Supplier{},
		sequences:   map[sequenceKey]int{},
	}
}

func (d *data) clone() *data {
	c := newData()
	for id, o := range d.orders {
		c.orders[id] = o.Clone()
	}
	for id, q := range d.quotes {
		c.quotes[id] = q.Clone()
	}
	for id, p := range d.purchases {
		c.purchases[id] = p.Clone()
	}
	for id, a := range d.attachments {
		v := *a
		c.attachments[id] = &v
	}
	for id, u := range d.users {
		v := *u
		c.users[id] = &v
	}
	for id, s := range d.suppliers {
		v := *s
		c.suppliers[id] = &v
	}
	for k, v := range d.sequences {
		c.sequences[k] = v
	}
	// Audit rows are never mutated after append.
	c.audit = append([]*domain.AuditEntry(nil), d.audit...)
	c.notifications = make([]*domain.Notification, len(d.notifications))
	for i, n := range d.notifications {
		v := *n
		c.notifications[i] = &v
	}
	c.orderIDs = append([]string(nil), d.orderIDs...)
	c.quoteIDs = append([]string(nil), d.quoteIDs...)
	c.purchaseIDs = append([]string(nil), d.purchaseIDs...)
	c.attachmentIDs = append([]string(nil), d.attachmentIDs...)
	c.supplierIDs = append([]string(nil), d.supplierIDs...)
	return c
}
