package memory

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/domain"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/platform/errors"
	"github.com/MarioTrazzi/portal-moncoes-sub000/internal/repository"
)

func newOrder(id, number string) *domain.ServiceOrder {
	now := time.Now().UTC()
	return &domain.ServiceOrder{
		ID:          id,
		Number:      number,
		Title:       "Impressora sem toner",
		Description: "Impressora do protocolo não imprime",
		Category:    domain.CategoryImpressora,
		Priority:    domain.PriorityNormal,
		CreatedByID: "u-func",
		Status:      domain.StatusAberta,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := stderrors.New("boom")

	err := s.InTx(ctx, func(r repository.Repos) error {
		require.NoError(t, r.Orders.Create(ctx, newOrder("o1", "OS-2025-001")))
		require.NoError(t, r.Audit.Append(ctx, &domain.AuditEntry{ServiceOrderID: "o1", UserID: "u", Action: domain.ActionOSCreated}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Repos().Orders.GetByID(ctx, "o1")
	require.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
	entries, err := s.Repos().Audit.ListByServiceOrder(ctx, "o1")
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestInTxCommits(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	require.NoError(t, s.InTx(ctx, func(r repository.Repos) error {
		return r.Orders.Create(ctx, newOrder("o1", "OS-2025-001"))
	}))

	got, err := s.Repos().Orders.GetByID(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, "OS-2025-001", got.Number)
}

func TestOrderUpdateVersionCheck(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Repos().Orders.Create(ctx, newOrder("o1", "OS-2025-001")))

	first, err := s.Repos().Orders.GetByID(ctx, "o1")
	require.NoError(t, err)
	stale, err := s.Repos().Orders.GetByID(ctx, "o1")
	require.NoError(t, err)

	first.Status = domain.StatusEmAnalise
	require.NoError(t, s.Repos().Orders.Update(ctx, first))
	require.Equal(t, 2, first.Version)

	stale.Status = domain.StatusEmAnalise
	err = s.Repos().Orders.Update(ctx, stale)
	require.True(t, errors.HasCode(err, errors.ErrCodeConflict))
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Repos().Orders.Create(ctx, newOrder("o1", "OS-2025-001")))

	got, err := s.Repos().Orders.GetByID(ctx, "o1")
	require.NoError(t, err)
	got.Title = "changed"

	again, err := s.Repos().Orders.GetByID(ctx, "o1")
	require.NoError(t, err)
	require.Equal(t, "Impressora sem toner", again.Title)
}

func TestSequenceSeedsFromExistingNumbers(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Repos().Orders.Create(ctx, newOrder("o1", "OS-2025-007")))
	require.NoError(t, s.Repos().Orders.Create(ctx, newOrder("o2", "OS-2024-050")))

	next, err := s.Repos().Sequences.Next(ctx, domain.PrefixServiceOrder, 2025)
	require.NoError(t, err)
	require.Equal(t, 8, next)

	next, err = s.Repos().Sequences.Next(ctx, domain.PrefixServiceOrder, 2025)
	require.NoError(t, err)
	require.Equal(t, 9, next)

	next, err = s.Repos().Sequences.Next(ctx, domain.PrefixPurchaseOrder, 2025)
	require.NoError(t, err)
	require.Equal(t, 1, next)

	_, err = s.Repos().Sequences.Next(ctx, "XX", 2025)
	require.True(t, errors.HasCode(err, errors.ErrCodeValidation))
}

func TestConcurrentSequenceAllocationIsUnique(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	const workers = 50
	results := make(chan int, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = s.InTx(ctx, func(r repository.Repos) error {
				n, err := r.Sequences.Next(ctx, domain.PrefixServiceOrder, 2025)
				if err != nil {
					return err
				}
				results <- n
				return nil
			})
		}()
	}
	wg.Wait()
	close(results)

	seen := map[int]bool{}
	for n := range results {
		require.False(t, seen[n], "duplicate sequence %d", n)
		seen[n] = true
	}
	require.Len(t, seen, workers)
}

func TestSingleApprovedQuotePerOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repos := s.Repos()

	require.NoError(t, repos.Quotes.Create(ctx, &domain.Quote{ID: "q1", ServiceOrderID: "o1", Status: domain.QuoteAprovado}))
	err := repos.Quotes.Create(ctx, &domain.Quote{ID: "q2", ServiceOrderID: "o1", Status: domain.QuoteAprovado})
	require.True(t, errors.HasCode(err, errors.ErrCodeConflict))

	require.NoError(t, repos.Quotes.Create(ctx, &domain.Quote{ID: "q3", ServiceOrderID: "o1", Status: domain.QuoteRecebido}))
	q3, err := repos.Quotes.GetByID(ctx, "q3")
	require.NoError(t, err)
	q3.Status = domain.QuoteAprovado
	require.True(t, errors.HasCode(repos.Quotes.Update(ctx, q3), errors.ErrCodeConflict))
}

func TestListFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"o1", "o2", "o3"} {
		o := newOrder(id, domain.FormatNumber(domain.PrefixServiceOrder, 2025, i+1))
		o.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		if id == "o2" {
			o.Status = domain.StatusEmAnalise
		}
		require.NoError(t, s.Repos().Orders.Create(ctx, o))
	}

	all, total, err := s.Repos().Orders.List(ctx, repository.ServiceOrderFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Equal(t, []string{"o3", "o2", "o1"}, []string{all[0].ID, all[1].ID, all[2].ID})

	status := domain.StatusEmAnalise
	filtered, total, err := s.Repos().Orders.List(ctx, repository.ServiceOrderFilter{Status: &status})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Equal(t, "o2", filtered[0].ID)

	page, total, err := s.Repos().Orders.List(ctx, repository.ServiceOrderFilter{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, page, 1)
	require.Equal(t, "o1", page[0].ID)
}

func TestNotificationsListAndMarkRead(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	repos := s.Repos()

	require.NoError(t, repos.Notifications.CreateBatch(ctx, []*domain.Notification{
		{ID: "n1", UserID: "u1", Title: "a"},
		{ID: "n2", UserID: "u1", Title: "b"},
		{ID: "n3", UserID: "u2", Title: "c"},
	}))

	list, err := repos.Notifications.ListByUser(ctx, "u1", false, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "n2", list[0].ID)

	require.NoError(t, repos.Notifications.MarkRead(ctx, "u1", "n1"))
	unread, err := repos.Notifications.ListByUser(ctx, "u1", true, 0)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.Equal(t, "n2", unread[0].ID)

	err = repos.Notifications.MarkRead(ctx, "u1", "n3")
	require.True(t, errors.HasCode(err, errors.ErrCodeNotFound))
}
