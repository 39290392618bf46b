// Package optimization provides shared data structures for optimization results.
package optimization

// Summary captures how a single allocation run used its bounds.
type Summary struct {
	Status          string   `json:"status"`
	Channels        int      `json:"channels"`
	TotalBudget     float64  `json:"totalBudget"`
	Floor           float64  `json:"floor"`
	Cap             float64  `json:"cap"`
	FloorsDropped   bool     `json:"floorsDropped"`
	ExpectedRevenue float64  `json:"expectedRevenue"`
	AtFloor         []string `json:"atFloor,omitempty"`
	AtCap           []string `json:"atCap,omitempty"`
	Notes           []string `json:"notes,omitempty"`
}

// Binding returns the number of channels pinned to a bound.
func (s Summary) Binding() int {
	return len(s.AtFloor) + len(s.AtCap)
}
