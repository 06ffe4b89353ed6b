package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/talisman-ep/autoria-monitoring-bot/config"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

type fakeRepo struct {
	mu       sync.Mutex
	searches []models.Search
	seen     map[string]bool
	lastRun  *models.PollRun

	searchesErr error
}

func newFakeRepo(searches ...models.Search) *fakeRepo {
	return &fakeRepo{searches: searches, seen: make(map[string]bool)}
}

func (r *fakeRepo) GetActiveSearches(ctx context.Context) ([]models.Search, error) {
	if r.searchesErr != nil {
		return nil, r.searchesErr
	}
	return r.searches, nil
}

func (r *fakeRepo) MarkSeen(ctx context.Context, userID, carID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := fmt.Sprintf("%d:%d", userID, carID)
	if r.seen[key] {
		return false, nil
	}
	r.seen[key] = true
	return true, nil
}

func (r *fakeRepo) CreatePollRun(ctx context.Context, run *models.PollRun) error { return nil }

func (r *fakeRepo) UpdatePollRun(ctx context.Context, run *models.PollRun) error {
	r.mu.Lock()
	r.lastRun = run
	r.mu.Unlock()
	return nil
}

func (r *fakeRepo) run() *models.PollRun {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}

type fakeSearcher struct {
	fn func(search models.Search) ([]models.Car, error)
}

func (s *fakeSearcher) Search(ctx context.Context, search models.Search) ([]models.Car, error) {
	return s.fn(search)
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.Car
}

func (n *fakeNotifier) SendCar(userID int64, car models.Car) error {
	n.mu.Lock()
	n.sent = append(n.sent, car)
	n.mu.Unlock()
	return nil
}

func (n *fakeNotifier) cars() []models.Car {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]models.Car(nil), n.sent...)
}

func testPollerConfig() config.PollerConfig {
	return config.PollerConfig{
		Interval:      time.Hour,
		WarmUp:        time.Millisecond,
		SendDelay:     0,
		MaxConcurrent: 5,
	}
}

func TestPoller_DeliversOnlyUnseen(t *testing.T) {
	repo := newFakeRepo(models.Search{ID: 1, UserID: 10, Brand: "Toyota", BrandID: 79})
	repo.seen["10:111"] = true

	searcher := &fakeSearcher{fn: func(models.Search) ([]models.Car, error) {
		return []models.Car{
			{ID: 111, Title: "Toyota Camry 2018", PriceUSD: 18500},
			{ID: 222, Title: "Toyota Corolla 2019", PriceUSD: 14000},
		}, nil
	}}
	notifier := &fakeNotifier{}

	p := New(testPollerConfig(), repo, searcher, notifier)
	p.TriggerNow(context.Background())

	sent := notifier.cars()
	if len(sent) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(sent))
	}
	if sent[0].ID != 222 {
		t.Fatalf("expected car 222 delivered, got %d", sent[0].ID)
	}

	run := repo.run()
	if run == nil {
		t.Fatal("expected a poll run record")
	}
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("expected completed run, got %s", run.Status)
	}
	if run.SearchesChecked != 1 || run.CarsFound != 2 || run.CarsNew != 1 {
		t.Fatalf("unexpected run stats: %+v", run)
	}
	if run.FinishedAt == nil {
		t.Fatal("expected FinishedAt to be set")
	}

	// A second cycle finds nothing new.
	p.TriggerNow(context.Background())
	if sent := notifier.cars(); len(sent) != 1 {
		t.Fatalf("expected no re-delivery, got %d total", len(sent))
	}
}

func TestPoller_ModelNameFilter(t *testing.T) {
	cars := []models.Car{
		{ID: 1, Title: "Toyota Camry 2018", PriceUSD: 18500},
		{ID: 2, Title: "Toyota Land Cruiser 2015", PriceUSD: 35000},
	}
	searcher := &fakeSearcher{fn: func(models.Search) ([]models.Car, error) { return cars, nil }}

	// A concrete model: cars whose title lacks the name are dropped.
	repo := newFakeRepo(models.Search{ID: 1, UserID: 10, Brand: "Toyota", ModelName: "Camry", ModelID: 2104})
	notifier := &fakeNotifier{}
	New(testPollerConfig(), repo, searcher, notifier).TriggerNow(context.Background())

	if sent := notifier.cars(); len(sent) != 1 || sent[0].ID != 1 {
		t.Fatalf("expected only the Camry, got %+v", sent)
	}

	// An "any model" sentinel disables the filter.
	repo = newFakeRepo(models.Search{ID: 2, UserID: 11, Brand: "Toyota", ModelName: "Будь-яка"})
	notifier = &fakeNotifier{}
	New(testPollerConfig(), repo, searcher, notifier).TriggerNow(context.Background())

	if sent := notifier.cars(); len(sent) != 2 {
		t.Fatalf("expected both cars for the sentinel, got %d", len(sent))
	}
}

func TestPoller_SearchFailureIsIsolated(t *testing.T) {
	repo := newFakeRepo(
		models.Search{ID: 1, UserID: 10, Brand: "Audi"},
		models.Search{ID: 2, UserID: 11, Brand: "BMW"},
	)
	searcher := &fakeSearcher{fn: func(s models.Search) ([]models.Car, error) {
		if s.UserID == 10 {
			return nil, errors.New("upstream down")
		}
		return []models.Car{{ID: 5, Title: "BMW 520d", PriceUSD: 21000}}, nil
	}}
	notifier := &fakeNotifier{}

	New(testPollerConfig(), repo, searcher, notifier).TriggerNow(context.Background())

	if sent := notifier.cars(); len(sent) != 1 || sent[0].ID != 5 {
		t.Fatalf("the healthy search must still deliver, got %+v", sent)
	}
	run := repo.run()
	if run.Status != models.RunStatusCompleted {
		t.Fatalf("one failed search must not fail the run, got %s", run.Status)
	}
	if run.ErrorsCount != 1 {
		t.Fatalf("expected 1 error counted, got %d", run.ErrorsCount)
	}
}

func TestPoller_ConcurrencyBound(t *testing.T) {
	var searches []models.Search
	for i := 0; i < 12; i++ {
		searches = append(searches, models.Search{ID: int64(i), UserID: int64(100 + i), Brand: "Any"})
	}
	repo := newFakeRepo(searches...)

	var inFlight, peak int64
	searcher := &fakeSearcher{fn: func(models.Search) ([]models.Car, error) {
		cur := atomic.AddInt64(&inFlight, 1)
		for {
			old := atomic.LoadInt64(&peak)
			if cur <= old || atomic.CompareAndSwapInt64(&peak, old, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		atomic.AddInt64(&inFlight, -1)
		return nil, nil
	}}

	cfg := testPollerConfig()
	cfg.MaxConcurrent = 3
	New(cfg, repo, searcher, &fakeNotifier{}).TriggerNow(context.Background())

	if p := atomic.LoadInt64(&peak); p > 3 {
		t.Fatalf("expected at most 3 concurrent searches, saw %d", p)
	}
}

func TestPoller_RepositoryFailureFailsRun(t *testing.T) {
	repo := newFakeRepo()
	repo.searchesErr = errors.New("db gone")

	New(testPollerConfig(), repo, &fakeSearcher{fn: func(models.Search) ([]models.Car, error) {
		t.Error("searcher must not be called")
		return nil, nil
	}}, &fakeNotifier{}).TriggerNow(context.Background())

	run := repo.run()
	if run == nil || run.Status != models.RunStatusFailed {
		t.Fatalf("expected a failed run, got %+v", run)
	}
}

func TestPoller_StartWarmUpAndStop(t *testing.T) {
	repo := newFakeRepo(models.Search{ID: 1, UserID: 10, Brand: "Toyota"})
	searcher := &fakeSearcher{fn: func(models.Search) ([]models.Car, error) {
		return []models.Car{{ID: 1, Title: "Toyota Camry", PriceUSD: 10000}}, nil
	}}
	notifier := &fakeNotifier{}

	p := New(testPollerConfig(), repo, searcher, notifier)
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for len(notifier.cars()) == 0 {
		select {
		case <-deadline:
			t.Fatal("first cycle never ran after warm-up")
		case <-time.After(5 * time.Millisecond):
		}
	}
	p.Stop()

	if len(notifier.cars()) != 1 {
		t.Fatalf("expected exactly one delivery, got %d", len(notifier.cars()))
	}
}
