// Package scheduler drives the poll loop: every cycle it fans active
// subscriptions out through the search client, gates results on the
// seen-set, and forwards new listings to the notifier.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/talisman-ep/autoria-monitoring-bot/config"
	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

// Repository is the persistence surface the poller needs.
type Repository interface {
	GetActiveSearches(ctx context.Context) ([]models.Search, error)
	// MarkSeen returns true when the (user, car) pair was newly
	// inserted, i.e. the car has not been delivered to this user yet.
	MarkSeen(ctx context.Context, userID, carID int64) (bool, error)
	CreatePollRun(ctx context.Context, run *models.PollRun) error
	UpdatePollRun(ctx context.Context, run *models.PollRun) error
}

// Searcher runs one marketplace query for a subscription.
type Searcher interface {
	Search(ctx context.Context, search models.Search) ([]models.Car, error)
}

// Notifier delivers one listing to one user.
type Notifier interface {
	SendCar(userID int64, car models.Car) error
}

type Poller struct {
	cfg      config.PollerConfig
	repo     Repository
	searcher Searcher
	notifier Notifier

	cron   *cron.Cron
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup
}

func New(cfg config.PollerConfig, repo Repository, searcher Searcher, notifier Notifier) *Poller {
	return &Poller{
		cfg:      cfg,
		repo:     repo,
		searcher: searcher,
		notifier: notifier,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the loop in the background. The first cycle waits for
// the warm-up delay so the rest of the process finishes starting. No
// error inside a cycle ever stops the loop; only ctx cancellation or
// Stop does, and both let the cycle in flight finish first.
func (p *Poller) Start(ctx context.Context) error {
	if p.cfg.Cron != "" {
		p.cron = cron.New()
		if _, err := p.cron.AddFunc(p.cfg.Cron, func() { p.runCycle(ctx) }); err != nil {
			return fmt.Errorf("invalid cron expression: %w", err)
		}
		log.Printf("Poller starting with cron: %s", p.cfg.Cron)
		p.cron.Start()
		return nil
	}

	log.Printf("Poller starting (interval: %s, warm-up: %s)", p.cfg.Interval, p.cfg.WarmUp)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		select {
		case <-time.After(p.cfg.WarmUp):
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		}

		p.runCycle(ctx)

		p.ticker = time.NewTicker(p.cfg.Interval)
		defer p.ticker.Stop()
		for {
			select {
			case <-p.ticker.C:
				p.runCycle(ctx)
			case <-p.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop halts scheduling and waits for the cycle in flight to complete.
func (p *Poller) Stop() {
	if p.cron != nil {
		ctx := p.cron.Stop()
		<-ctx.Done()
	}
	close(p.stopCh)
	p.wg.Wait()
}

// TriggerNow runs one cycle synchronously.
func (p *Poller) TriggerNow(ctx context.Context) {
	p.runCycle(ctx)
}

type cycleStats struct {
	mu        sync.Mutex
	carsFound int
	carsNew   int
	errors    int
}

func (st *cycleStats) add(found, newCars, errs int) {
	st.mu.Lock()
	st.carsFound += found
	st.carsNew += newCars
	st.errors += errs
	st.mu.Unlock()
}

// runCycle processes every active subscription once. Failures are
// isolated per subscription; a repository failure ends only this cycle.
func (p *Poller) runCycle(ctx context.Context) {
	run := &models.PollRun{
		ID:        uuid.New(),
		StartedAt: time.Now(),
		Status:    models.RunStatusRunning,
	}
	if err := p.repo.CreatePollRun(ctx, run); err != nil {
		log.Printf("Warning: failed to create poll run: %v", err)
	}

	searches, err := p.repo.GetActiveSearches(ctx)
	if err != nil {
		log.Printf("Poll cycle error: %v", err)
		p.finishRun(ctx, run, models.RunStatusFailed)
		return
	}
	if len(searches) == 0 {
		p.finishRun(ctx, run, models.RunStatusCompleted)
		return
	}

	log.Printf("Poller: checking %d active searches", len(searches))
	run.SearchesChecked = len(searches)

	stats := &cycleStats{}
	// Bounds concurrent marketplace requests to stay under the
	// upstream's anti-abuse threshold.
	sem := make(chan struct{}, p.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for _, search := range searches {
		wg.Add(1)
		go func(search models.Search) {
			defer wg.Done()
			p.processSearch(ctx, search, sem, stats)
		}(search)
	}
	wg.Wait()

	run.CarsFound = stats.carsFound
	run.CarsNew = stats.carsNew
	run.ErrorsCount = stats.errors
	p.finishRun(ctx, run, models.RunStatusCompleted)

	log.Printf("Poller: cycle finished (%d searches, %d cars, %d new, %d errors)",
		run.SearchesChecked, run.CarsFound, run.CarsNew, run.ErrorsCount)
}

func (p *Poller) finishRun(ctx context.Context, run *models.PollRun, status models.RunStatus) {
	now := time.Now()
	run.FinishedAt = &now
	run.Status = status
	if err := p.repo.UpdatePollRun(ctx, run); err != nil {
		log.Printf("Warning: failed to update poll run: %v", err)
	}
}

// processSearch handles one subscription. The semaphore is held only
// around the marketplace request; persistence and delivery run outside
// it. Any failure terminates this unit alone.
func (p *Poller) processSearch(ctx context.Context, search models.Search, sem chan struct{}, stats *cycleStats) {
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	found, err := p.searcher.Search(ctx, search)
	<-sem

	if err != nil {
		log.Printf("Search error for user %d (%s): %v", search.UserID, search.Brand, err)
		stats.add(0, 0, 1)
		return
	}
	if len(found) == 0 {
		return
	}

	// Safety catch: the marketplace occasionally returns unrelated
	// cars for a model id, so the model name must appear in the title.
	if search.HasConcreteModel() {
		found = filterByModelName(found, search.ModelName)
		if len(found) == 0 {
			return
		}
	}

	newCars := 0
	errs := 0
	for _, car := range found {
		inserted, err := p.repo.MarkSeen(ctx, search.UserID, car.ID)
		if err != nil {
			log.Printf("Seen-check error for user %d car %d: %v", search.UserID, car.ID, err)
			errs++
			continue
		}
		if !inserted {
			continue
		}
		newCars++

		if err := p.notifier.SendCar(search.UserID, car); err != nil {
			log.Printf("Failed to send car %d to user %d: %v", car.ID, search.UserID, err)
			errs++
		}

		// Pace deliveries to respect Telegram flood limits.
		select {
		case <-time.After(p.cfg.SendDelay):
		case <-ctx.Done():
			return
		}
	}

	stats.add(len(found), newCars, errs)
	if newCars > 0 {
		log.Printf("User %d: sent %d new cars (%s)", search.UserID, newCars, search.Brand)
	}
}

func filterByModelName(cars []models.Car, modelName string) []models.Car {
	needle := strings.ToLower(modelName)
	var kept []models.Car
	for _, car := range cars {
		if strings.Contains(strings.ToLower(car.Title), needle) {
			kept = append(kept, car)
		}
	}
	return kept
}
