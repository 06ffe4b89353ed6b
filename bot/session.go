package bot

import (
	"sync"

	"github.com/talisman-ep/autoria-monitoring-bot/models"
)

// Subscription-form steps, in flow order.
type step int

const (
	stepNone step = iota
	stepBrand
	stepModel
	stepModelSearch
	stepYearFrom
	stepYearTo
	stepPriceFrom
	stepPriceTo
	stepRegion
	stepFuel
	stepGearbox
)

// session is one user's in-flight subscription form plus the reference
// lists their keyboards were built from (so ids can be resolved back to
// names on selection).
type session struct {
	step  step
	draft models.Search

	brands       []models.RefItem
	regions      []models.RefItem
	modelsAll    []models.RefItem
	modelsSearch []models.RefItem
	searchMode   bool

	regionName string
	fuelName   string
}

type sessionStore struct {
	mu       sync.Mutex
	sessions map[int64]*session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[int64]*session)}
}

func (s *sessionStore) get(userID int64) *session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[userID]
}

func (s *sessionStore) put(userID int64, sess *session) {
	s.mu.Lock()
	s.sessions[userID] = sess
	s.mu.Unlock()
}

func (s *sessionStore) clear(userID int64) {
	s.mu.Lock()
	delete(s.sessions, userID)
	s.mu.Unlock()
}
