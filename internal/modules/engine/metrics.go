// README: Per-tick metric samples, the time-series recorder and the end-of-run summary.
package engine

import (
	"sort"

	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/mutation"
)

// TickMetrics samples every public counter once per tick.
type TickMetrics struct {
	Time              int                     `json:"time"`
	Served            int                     `json:"served"`
	Expired           int                     `json:"expired"`
	AvgWait           float64                 `json:"avg_wait"`
	Generated         int                     `json:"generated"`
	Active            int                     `json:"active"`
	Waiting           int                     `json:"waiting"`
	OffersMade        int                     `json:"offers_made"`
	OffersAccepted    int                     `json:"offers_accepted"`
	AcceptanceRate    float64                 `json:"acceptance_rate"`
	Conflicts         int                     `json:"conflicts"`
	Assignments       int                     `json:"assignments"`
	BusyDrivers       int                     `json:"busy_drivers"`
	Utilization       float64                 `json:"utilization"`
	ServiceLevel      float64                 `json:"service_level"`
	Mutations         int                     `json:"mutations"`
	MutationsByReason map[mutation.Reason]int `json:"mutations_by_reason"`
}

// Metrics returns the current counters.
func (s *Simulation) Metrics() TickMetrics {
	m := TickMetrics{
		Time:              s.time,
		Served:            s.stats.Served,
		Expired:           s.stats.Expired,
		AvgWait:           s.AvgWait(),
		Generated:         s.stats.Generated,
		Active:            len(s.active),
		Waiting:           s.waitingCount(),
		OffersMade:        s.stats.OffersMade,
		OffersAccepted:    s.stats.OffersAccepted,
		Conflicts:         s.stats.Conflicts,
		Assignments:       s.stats.Assignments,
		BusyDrivers:       s.busyDrivers(),
		Mutations:         s.stats.Mutations,
		MutationsByReason: s.MutationsByReason(),
	}
	m.AcceptanceRate = ratio(m.OffersAccepted, m.OffersMade)
	m.Utilization = ratio(m.BusyDrivers, len(s.drivers))
	m.ServiceLevel = ratio(m.Served, m.Served+m.Expired)
	return m
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Recorder keeps one TickMetrics sample per tick.
type Recorder struct {
	samples []TickMetrics
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Sample(s *Simulation) {
	r.samples = append(r.samples, s.Metrics())
}

func (r *Recorder) Len() int { return len(r.samples) }

// Samples returns a copy of the recorded series, optionally only the samples
// taken after tick since.
func (r *Recorder) Samples(since int) []TickMetrics {
	i := sort.Search(len(r.samples), func(i int) bool { return r.samples[i].Time > since })
	out := make([]TickMetrics, len(r.samples)-i)
	copy(out, r.samples[i:])
	return out
}

func (r *Recorder) Last() (TickMetrics, bool) {
	if len(r.samples) == 0 {
		return TickMetrics{}, false
	}
	return r.samples[len(r.samples)-1], true
}

// Summary is the end-of-run report.
type Summary struct {
	Policy             string                  `json:"policy"`
	Ticks              int                     `json:"ticks"`
	Drivers            int                     `json:"drivers"`
	Generated          int                     `json:"generated"`
	Served             int                     `json:"served"`
	Expired            int                     `json:"expired"`
	Active             int                     `json:"active"`
	AvgWait            float64                 `json:"avg_wait"`
	ServiceLevel       float64                 `json:"service_level"`
	AcceptanceRate     float64                 `json:"acceptance_rate"`
	Conflicts          int                     `json:"conflicts"`
	TotalEarnings      float64                 `json:"total_earnings"`
	EarningsByBehavior map[driver.Kind]float64 `json:"earnings_by_behavior"`
	BehaviorCounts     map[driver.Kind]int     `json:"behavior_counts"`
	Mutations          int                     `json:"mutations"`
	MutationsByReason  map[mutation.Reason]int `json:"mutations_by_reason"`
}

func (s *Simulation) Summary() Summary {
	m := s.Metrics()
	sum := Summary{
		Policy:             s.policy.Name(),
		Ticks:              s.recorder.Len(),
		Drivers:            len(s.drivers),
		Generated:          m.Generated,
		Served:             m.Served,
		Expired:            m.Expired,
		Active:             m.Active,
		AvgWait:            m.AvgWait,
		ServiceLevel:       m.ServiceLevel,
		AcceptanceRate:     m.AcceptanceRate,
		Conflicts:          m.Conflicts,
		EarningsByBehavior: s.EarningsByBehavior(),
		BehaviorCounts:     make(map[driver.Kind]int, len(driver.Kinds)),
		Mutations:          m.Mutations,
		MutationsByReason:  m.MutationsByReason,
	}
	for _, d := range s.drivers {
		sum.TotalEarnings += d.Earnings
		sum.BehaviorCounts[d.Behavior.Kind()]++
	}
	return sum
}
