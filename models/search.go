package models

// Search status
const (
	SearchStatusActive   = "active"
	SearchStatusInactive = "inactive"
)

// Sentinel model names meaning "no model restriction". Subscriptions
// carrying one of these skip the title safety filter.
var AnyModelNames = []string{"Будь-яка", "Всі моделі"}

// Search is a persisted subscription: one user's filter criteria the
// poller matches new listings against. A zero id means "any" for every
// optional filter; BrandID is always required.
type Search struct {
	ID        int64  `json:"id" db:"id"`
	UserID    int64  `json:"user_id" db:"user_id"`
	Brand     string `json:"brand" db:"brand"`
	BrandID   int64  `json:"brand_id" db:"brand_id"`
	ModelName string `json:"model_name" db:"model_name"`
	ModelID   int64  `json:"model_id" db:"model_id"`
	YearFrom  int    `json:"year_from" db:"year_from"`
	YearTo    int    `json:"year_to" db:"year_to"`
	PriceFrom int    `json:"price_from" db:"price_from"`
	PriceTo   int    `json:"price_to" db:"price_to"`
	RegionID  int64  `json:"region_id" db:"region_id"`
	FuelID    int64  `json:"fuel_id" db:"fuel_id"`
	GearboxID int64  `json:"gearbox_id" db:"gearbox_id"`
	Status    string `json:"status" db:"status"`
}

// HasConcreteModel reports whether the subscription names a specific
// model, i.e. the safety filter applies.
func (s *Search) HasConcreteModel() bool {
	if s.ModelName == "" {
		return false
	}
	for _, any := range AnyModelNames {
		if s.ModelName == any {
			return false
		}
	}
	return true
}

// User is a registered bot user.
type User struct {
	UserID   int64  `json:"user_id" db:"user_id"`
	Username string `json:"username" db:"username"`
	FullName string `json:"full_name" db:"full_name"`
}

// RefItem is one entry of a reference taxonomy (brand, model, region).
type RefItem struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
