package core

// Report aggregates one period's records priced in a single display
// currency. Records keep their original sums and currencies; only the
// totals are converted.
type Report struct {
	Period     Period             `json:"period"`
	Currency   Currency           `json:"currency"`
	Records    []Record           `json:"records"`
	Total      float64            `json:"total"`
	ByCategory map[string]float64 `json:"byCategory"`
	Counts     map[string]int     `json:"counts"`
}
