package parking

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/citypark/citypark/internal/clients"
	"github.com/citypark/citypark/internal/platform/db"
)

// newPostgresRepository connects to CITYPARK_TEST_PG_DSN and resets the parking
// tables. The database must be dedicated to tests.
func newPostgresRepository(t *testing.T, codes ...string) *Repository {
	t.Helper()
	dsn := os.Getenv("CITYPARK_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("set CITYPARK_TEST_PG_DSN to run Postgres integration tests")
	}
	ctx := context.Background()
	pool, err := db.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, db.Migrate(ctx, pool))
	resetParkingTables(t, pool)
	t.Cleanup(func() { resetParkingTables(t, pool) })

	repo := NewRepository(pool)
	for _, code := range codes {
		_, err := repo.InsertSlot(ctx, code)
		require.NoError(t, err)
	}
	return repo
}

func resetParkingTables(t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(context.Background(), `TRUNCATE parking_sessions, parking_slots RESTART IDENTITY`)
	require.NoError(t, err)
}

func newPostgresLedger(t *testing.T, repo *Repository) *SessionLedger {
	t.Helper()
	policy, err := NewHourlyPolicy(time.Hour, 500, 0)
	require.NoError(t, err)
	fees, err := NewFeeCalculator(policy, 0)
	require.NoError(t, err)
	directory := clients.NewMemoryDirectory(clients.Client{ID: 1, UserID: 100, Name: "Ana Silva", DocumentID: testDocument})
	clock := newFakeClock()
	return NewSessionLedger(repo, NewSlotPool(repo, nil), fees, directory, LedgerConfig{Clock: clock.Now})
}

func TestPostgresClaimSkipsLockedSlots(t *testing.T) {
	repo := newPostgresRepository(t, "A-01", "A-02")
	ctx := context.Background()
	errRollback := errors.New("rollback")

	claimed := make(chan Slot, 1)
	release := make(chan struct{})
	var g errgroup.Group
	g.Go(func() error {
		err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			slot, err := tx.ClaimFirstFreeSlot(ctx)
			if err != nil {
				return err
			}
			claimed <- slot
			<-release
			return errRollback
		})
		if errors.Is(err, errRollback) {
			return nil
		}
		return err
	})

	var held Slot
	select {
	case held = <-claimed:
	case <-time.After(5 * time.Second):
		close(release)
		t.Fatal(g.Wait())
	}
	require.Equal(t, "A-01", held.Code)

	var second Slot
	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		second, err = tx.ClaimFirstFreeSlot(ctx)
		return err
	}))
	require.Equal(t, "A-02", second.Code)

	// A-01 is locked by an uncommitted claim, so the pool reports full.
	err := repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.ClaimFirstFreeSlot(ctx)
		return err
	})
	require.ErrorIs(t, err, ErrNoFreeSlot)

	close(release)
	require.NoError(t, g.Wait())

	occ, err := repo.SlotOccupancy(ctx)
	require.NoError(t, err)
	require.Equal(t, Occupancy{Free: 1, Occupied: 1}, occ)

	var third Slot
	require.NoError(t, repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		third, err = tx.ClaimFirstFreeSlot(ctx)
		return err
	}))
	require.Equal(t, "A-01", third.Code)
}

func TestPostgresConcurrentCheckInsNeverShareSlot(t *testing.T) {
	const slots = 5
	codes := make([]string, slots)
	for i := range codes {
		codes[i] = fmt.Sprintf("B-%02d", i+1)
	}
	repo := newPostgresRepository(t, codes...)
	ledger := newPostgresLedger(t, repo)
	ctx := context.Background()

	var (
		mu       sync.Mutex
		assigned = map[string]int{}
		full     int
	)
	var g errgroup.Group
	for i := 0; i < slots+1; i++ {
		i := i
		g.Go(func() error {
			s, err := ledger.CheckIn(ctx, CheckInInput{Vehicle: vehicle(fmt.Sprintf("PGX-%04d", i)), DocumentID: testDocument})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				assigned[s.SlotCode]++
			case errors.Is(err, ErrNoFreeSlot):
				full++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Len(t, assigned, slots)
	for code, n := range assigned {
		require.Equal(t, 1, n, code)
	}
	require.Equal(t, 1, full)

	occ, err := repo.SlotOccupancy(ctx)
	require.NoError(t, err)
	require.Equal(t, Occupancy{Free: 0, Occupied: slots}, occ)
}

func TestPostgresInsertSessionReceiptCollision(t *testing.T) {
	repo := newPostgresRepository(t, "C-01", "C-02")
	ctx := context.Background()
	entry := time.Date(2024, 8, 15, 18, 52, 17, 0, time.UTC)

	insert := func() error {
		return repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			slot, err := tx.ClaimFirstFreeSlot(ctx)
			if err != nil {
				return err
			}
			return tx.InsertSession(ctx, Session{
				ID:         uuid.NewString(),
				Receipt:    "20240815-185217-C",
				Vehicle:    vehicle("ABC-2222"),
				DocumentID: testDocument,
				SlotID:     slot.ID,
				EntryAt:    entry,
				Status:     SessionOpen,
			})
		})
	}
	require.NoError(t, insert())
	require.ErrorIs(t, insert(), ErrReceiptCollision)

	// The failed insert rolled its slot claim back.
	occ, err := repo.SlotOccupancy(ctx)
	require.NoError(t, err)
	require.Equal(t, Occupancy{Free: 1, Occupied: 1}, occ)

	s, err := repo.FindSessionByReceipt(ctx, "20240815-185217-C")
	require.NoError(t, err)
	require.Equal(t, "C-01", s.SlotCode)
}

func TestPostgresConcurrentCheckOutClosesOnce(t *testing.T) {
	repo := newPostgresRepository(t, "D-01")
	ledger := newPostgresLedger(t, repo)
	ctx := context.Background()

	in, err := ledger.CheckIn(ctx, CheckInInput{Vehicle: vehicle("ABC-2222"), DocumentID: testDocument})
	require.NoError(t, err)

	var (
		mu      sync.Mutex
		closed  int
		invalid int
	)
	var g errgroup.Group
	for i := 0; i < 4; i++ {
		g.Go(func() error {
			_, err := ledger.CheckOut(ctx, in.Receipt)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				closed++
			case errors.Is(err, ErrInvalidState):
				invalid++
			default:
				return err
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())
	require.Equal(t, 1, closed)
	require.Equal(t, 3, invalid)

	out, err := repo.FindSessionByReceipt(ctx, in.Receipt)
	require.NoError(t, err)
	require.Equal(t, SessionClosed, out.Status)
	require.NotNil(t, out.Amount)

	occ, err := repo.SlotOccupancy(ctx)
	require.NoError(t, err)
	require.Equal(t, Occupancy{Free: 1, Occupied: 0}, occ)
}
