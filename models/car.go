package models

// Car is one marketplace advertisement normalized into the canonical
// schema. It is built once during extraction/enrichment and never
// mutated after being handed to the poller.
type Car struct {
	ID       int64  `json:"id" db:"id"`
	Title    string `json:"title" db:"title"`
	PriceUSD int    `json:"price_usd" db:"price_usd"`
	URL      string `json:"url" db:"url"`
	Mileage  int    `json:"mileage" db:"mileage"` // thousands of km, 0 if unknown
	ImageURL string `json:"image_url" db:"image_url"`
	Location string `json:"location" db:"location"`
	Gearbox  string `json:"gearbox" db:"gearbox"`
	Fuel     string `json:"fuel" db:"fuel"`
}

// Complete reports whether every display field the search page may omit
// is already populated. Complete cars skip the detail fetch.
func (c *Car) Complete() bool {
	return c.Location != "" && c.Gearbox != "" && c.Fuel != "" && c.Mileage != 0
}
