// README: Simulation engine owning drivers and requests and running the nine-phase tick.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"ridesim/internal/modules/dispatch"
	"ridesim/internal/modules/driver"
	"ridesim/internal/modules/mutation"
	"ridesim/internal/modules/request"
	"ridesim/internal/types"
)

var (
	ErrInvalidConfig    = errors.New("invalid simulation config")
	ErrNotInitialized   = errors.New("simulation not initialized")
	ErrDuplicateRequest = errors.New("duplicate request id")
)

// RequestSource produces the requests arriving at a tick.
type RequestSource interface {
	MaybeGenerate(now int) []*request.Request
}

// MutationRule may swap a driver's behavior after movement.
type MutationRule interface {
	MaybeMutate(d *driver.Driver, now int) (mutation.Record, bool)
}

type Options struct {
	Drivers []*driver.Driver
	// Requests are scheduled arrivals, released once the clock reaches their creation time.
	Requests  []*request.Request
	Policy    dispatch.Policy
	Generator RequestSource
	Mutation  MutationRule
	Timeout   int
	Bounds    types.Bounds
	// ExpireAssigned also expires assigned requests that were not picked up in time
	// and frees their drivers.
	ExpireAssigned bool
	KeepOfferLog   bool
	StartTime      int
	Logger         *zerolog.Logger
}

// Stats are the running counters of a simulation.
type Stats struct {
	Generated      int
	Served         int
	Expired        int
	WaitSum        int
	WaitSamples    int
	OffersMade     int
	OffersAccepted int
	Conflicts      int
	Assignments    int
	Mutations      int
}

// TickReport describes what happened during one tick.
type TickReport struct {
	Time      int               `json:"time"`
	Generated int               `json:"generated"`
	Expired   int               `json:"expired"`
	Proposed  int               `json:"proposed"`
	Accepted  int               `json:"accepted"`
	Conflicts int               `json:"conflicts"`
	Assigned  int               `json:"assigned"`
	PickedUp  int               `json:"picked_up"`
	Delivered int               `json:"delivered"`
	Mutations []mutation.Record `json:"mutations,omitempty"`
}

// OfferRecord is one entry of the optional offer log.
type OfferRecord struct {
	Time           int      `json:"time"`
	DriverID       types.ID `json:"driver_id"`
	RequestID      types.ID `json:"request_id"`
	Policy         string   `json:"policy"`
	TravelTime     float64  `json:"travel_time"`
	Reward         float64  `json:"reward"`
	PickupDistance float64  `json:"pickup_distance"`
	Accepted       bool     `json:"accepted"`
	Assigned       bool     `json:"assigned"`
}

// Simulation is the single owner of every driver, request and counter of a run.
// It is not safe for concurrent use; see Controller.
type Simulation struct {
	time           int
	drivers        []*driver.Driver
	driverByID     map[types.ID]*driver.Driver
	requests       []*request.Request
	requestIDs     map[types.ID]struct{}
	active         []*request.Request
	scheduled      []*request.Request
	policy         dispatch.Policy
	generator      RequestSource
	mutation       MutationRule
	timeout        int
	bounds         types.Bounds
	expireAssigned bool
	keepOfferLog   bool
	log            zerolog.Logger

	stats              Stats
	earningsByBehavior map[driver.Kind]float64
	mutations          []mutation.Record
	mutationsByReason  map[mutation.Reason]int
	offerLog           []OfferRecord
	recorder           *Recorder
}

func New(opts Options) (*Simulation, error) {
	if opts.Policy == nil {
		return nil, fmt.Errorf("%w: dispatch policy is required", ErrInvalidConfig)
	}
	if opts.Timeout <= 0 {
		return nil, fmt.Errorf("%w: timeout %d must be positive", ErrInvalidConfig, opts.Timeout)
	}
	if !(opts.Bounds.Width > 0) || !(opts.Bounds.Height > 0) {
		return nil, fmt.Errorf("%w: bounds %vx%v must be positive", ErrInvalidConfig, opts.Bounds.Width, opts.Bounds.Height)
	}

	s := &Simulation{
		time:               opts.StartTime,
		driverByID:         make(map[types.ID]*driver.Driver, len(opts.Drivers)),
		requestIDs:         make(map[types.ID]struct{}, len(opts.Requests)),
		policy:             opts.Policy,
		generator:          opts.Generator,
		mutation:           opts.Mutation,
		timeout:            opts.Timeout,
		bounds:             opts.Bounds,
		expireAssigned:     opts.ExpireAssigned,
		keepOfferLog:       opts.KeepOfferLog,
		log:                zerolog.Nop(),
		earningsByBehavior: make(map[driver.Kind]float64),
		mutationsByReason:  make(map[mutation.Reason]int),
		recorder:           NewRecorder(),
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("component", "engine").Logger()
	}

	for _, d := range opts.Drivers {
		if d == nil || d.Behavior == nil {
			return nil, fmt.Errorf("%w: driver without behavior", ErrInvalidConfig)
		}
		if _, dup := s.driverByID[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate driver id %d", ErrInvalidConfig, d.ID)
		}
		if !(d.Speed > 0) {
			return nil, fmt.Errorf("%w: driver %d speed %v must be positive", ErrInvalidConfig, d.ID, d.Speed)
		}
		if !d.IsIdle() {
			return nil, fmt.Errorf("%w: driver %d must start idle", ErrInvalidConfig, d.ID)
		}
		if !s.bounds.Contains(d.Position) {
			return nil, fmt.Errorf("%w: driver %d at %v outside the map", ErrInvalidConfig, d.ID, d.Position)
		}
		s.driverByID[d.ID] = d
		s.drivers = append(s.drivers, d)
	}

	seen := make(map[types.ID]struct{}, len(opts.Requests))
	for _, r := range opts.Requests {
		if r == nil || r.Status != request.StatusWaiting {
			return nil, fmt.Errorf("%w: scheduled requests must be waiting", ErrInvalidConfig)
		}
		if _, dup := seen[r.ID]; dup {
			return nil, fmt.Errorf("%w: %w: %d", ErrInvalidConfig, ErrDuplicateRequest, r.ID)
		}
		if !s.bounds.Contains(r.Pickup) || !s.bounds.Contains(r.Dropoff) {
			return nil, fmt.Errorf("%w: request %d outside the map", ErrInvalidConfig, r.ID)
		}
		seen[r.ID] = struct{}{}
		s.scheduled = append(s.scheduled, r)
	}
	sort.SliceStable(s.scheduled, func(i, j int) bool {
		return s.scheduled[i].CreationTime < s.scheduled[j].CreationTime
	})
	return s, nil
}

// Tick runs the nine phases once and advances the clock. An error means an
// entity refused a lifecycle transition the engine asked for; the simulation
// should not be ticked again after that.
func (s *Simulation) Tick() (TickReport, error) {
	now := s.time
	rep := TickReport{Time: now}

	// 1. generate
	n, err := s.release(now)
	if err != nil {
		return rep, err
	}
	rep.Generated = n

	// 2. expire
	if rep.Expired, err = s.expire(now); err != nil {
		return rep, err
	}

	// 3. proposals
	pairs := s.policy.Assign(s.drivers, s.active, now)
	rep.Proposed = len(pairs)

	// 4. offers
	accepted, logIdx := s.offer(pairs, now)
	rep.Accepted = len(accepted)

	// 5. conflicts
	winners := dispatch.ResolveConflicts(accepted)
	rep.Conflicts = dispatch.Conflicts(accepted, winners)
	s.stats.Conflicts += rep.Conflicts

	// 6. assignment
	for _, o := range winners {
		if err := o.Driver.AssignRequest(o.Request, now); err != nil {
			return rep, err
		}
		if i, ok := logIdx[o.Driver.ID]; ok {
			s.offerLog[i].Assigned = true
		}
	}
	rep.Assigned = len(winners)
	s.stats.Assignments += rep.Assigned

	// 7. movement
	if rep.PickedUp, rep.Delivered, err = s.move(now); err != nil {
		return rep, err
	}

	// 8. mutation
	rep.Mutations = s.mutate(now)

	// 9. advance
	s.time++
	s.recorder.Sample(s)

	s.log.Debug().
		Int("time", now).
		Int("generated", rep.Generated).
		Int("expired", rep.Expired).
		Int("accepted", rep.Accepted).
		Int("assigned", rep.Assigned).
		Int("delivered", rep.Delivered).
		Int("active", len(s.active)).
		Msg("tick")
	return rep, nil
}

// Run executes up to n ticks, stopping early at a tick boundary when ctx is done.
func (s *Simulation) Run(ctx context.Context, n int) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := s.Tick(); err != nil {
			return err
		}
	}
	return nil
}

func (s *Simulation) release(now int) (int, error) {
	var arrivals []*request.Request
	i := 0
	for i < len(s.scheduled) && s.scheduled[i].CreationTime <= now {
		arrivals = append(arrivals, s.scheduled[i])
		i++
	}
	s.scheduled = s.scheduled[i:]
	if s.generator != nil {
		arrivals = append(arrivals, s.generator.MaybeGenerate(now)...)
	}
	for _, r := range arrivals {
		if _, dup := s.requestIDs[r.ID]; dup {
			return 0, fmt.Errorf("%w: %d at time %d", ErrDuplicateRequest, r.ID, now)
		}
		s.requestIDs[r.ID] = struct{}{}
		s.requests = append(s.requests, r)
		s.active = append(s.active, r)
	}
	s.stats.Generated += len(arrivals)
	return len(arrivals), nil
}

func (s *Simulation) expire(now int) (int, error) {
	expired := 0
	for _, r := range s.active {
		if now-r.CreationTime <= s.timeout {
			r.UpdateWait(now)
			continue
		}
		switch {
		case r.Status == request.StatusWaiting:
		case r.Status == request.StatusAssigned && s.expireAssigned:
			if r.AssignedDriverID != nil {
				if d, ok := s.driverByID[*r.AssignedDriverID]; ok && d.CurrentRequest() == r {
					d.Release(now)
				}
			}
		default:
			r.UpdateWait(now)
			continue
		}
		if err := r.MarkExpired(now); err != nil {
			return expired, err
		}
		expired++
	}
	s.stats.Expired += expired
	if expired > 0 {
		s.compact()
	}
	return expired, nil
}

// offer turns proposals into offers and collects the accepted ones. Pairs that
// are no longer eligible or that reuse a driver are skipped. Several drivers
// may accept the same request; conflict resolution settles that.
func (s *Simulation) offer(pairs []dispatch.Pair, now int) ([]driver.Offer, map[types.ID]int) {
	var accepted []driver.Offer
	var logIdx map[types.ID]int
	if s.keepOfferLog {
		logIdx = make(map[types.ID]int, len(pairs))
	}
	used := make(map[types.ID]struct{}, len(pairs))
	for _, p := range pairs {
		if p.Driver == nil || p.Request == nil || !p.Driver.IsIdle() || p.Request.Status != request.StatusWaiting {
			continue
		}
		if _, ok := used[p.Driver.ID]; ok {
			continue
		}
		used[p.Driver.ID] = struct{}{}

		o := driver.NewOffer(p.Driver, p.Request, now, s.policy.Name())
		ok := p.Driver.Behavior.Decide(p.Driver, o, now)
		s.stats.OffersMade++
		if ok {
			s.stats.OffersAccepted++
			accepted = append(accepted, o)
		}
		if s.keepOfferLog {
			logIdx[p.Driver.ID] = len(s.offerLog)
			s.offerLog = append(s.offerLog, OfferRecord{
				Time:           now,
				DriverID:       p.Driver.ID,
				RequestID:      p.Request.ID,
				Policy:         o.PolicyName,
				TravelTime:     o.EstimatedTravelTime,
				Reward:         o.EstimatedReward,
				PickupDistance: o.PickupDistance(),
				Accepted:       ok,
			})
		}
	}
	return accepted, logIdx
}

// move steps every busy driver once. Arrivals complete at the end of the tick.
func (s *Simulation) move(now int) (picked, delivered int, err error) {
	arrival := now + 1
	for _, d := range s.drivers {
		if d.IsIdle() {
			continue
		}
		d.Step(1)
		if d.Status == driver.StatusToPickup && d.AtTarget() {
			if err := d.CompletePickup(arrival); err != nil {
				return picked, delivered, err
			}
			picked++
		}
		if d.Status == driver.StatusToDropoff && d.AtTarget() {
			kind := d.Behavior.Kind()
			trip, err := d.CompleteDropoff(arrival)
			if err != nil {
				return picked, delivered, err
			}
			if trip == nil {
				continue
			}
			delivered++
			s.stats.Served++
			s.stats.WaitSum += trip.Wait
			s.stats.WaitSamples++
			s.earningsByBehavior[kind] += trip.Fare
		}
	}
	if delivered > 0 {
		s.compact()
	}
	return picked, delivered, nil
}

func (s *Simulation) mutate(now int) []mutation.Record {
	if s.mutation == nil {
		return nil
	}
	var out []mutation.Record
	for _, d := range s.drivers {
		rec, ok := s.mutation.MaybeMutate(d, now)
		if !ok {
			continue
		}
		s.mutations = append(s.mutations, rec)
		s.mutationsByReason[rec.Reason]++
		s.stats.Mutations++
		out = append(out, rec)
		s.log.Info().
			Int("driver_id", int(rec.DriverID)).
			Str("from", string(rec.From)).
			Str("to", string(rec.To)).
			Str("reason", string(rec.Reason)).
			Float64("avg_fare", rec.AvgFare).
			Int("time", now).
			Msg("driver behavior mutated")
	}
	return out
}

// compact drops terminal requests from the active pool, keeping order.
func (s *Simulation) compact() {
	kept := s.active[:0]
	for _, r := range s.active {
		if r.IsActive() {
			kept = append(kept, r)
		}
	}
	for i := len(kept); i < len(s.active); i++ {
		s.active[i] = nil
	}
	s.active = kept
}

func (s *Simulation) Time() int { return s.time }

func (s *Simulation) PolicyName() string { return s.policy.Name() }

func (s *Simulation) Stats() Stats { return s.stats }

// AvgWait is the mean wait over delivered requests, 0 before the first delivery.
func (s *Simulation) AvgWait() float64 {
	if s.stats.WaitSamples == 0 {
		return 0
	}
	return float64(s.stats.WaitSum) / float64(s.stats.WaitSamples)
}

// EarningsByBehavior returns fares booked per behavior kind at delivery time.
func (s *Simulation) EarningsByBehavior() map[driver.Kind]float64 {
	out := make(map[driver.Kind]float64, len(s.earningsByBehavior))
	for k, v := range s.earningsByBehavior {
		out[k] = v
	}
	return out
}

func (s *Simulation) Mutations() []mutation.Record {
	out := make([]mutation.Record, len(s.mutations))
	copy(out, s.mutations)
	return out
}

func (s *Simulation) MutationsByReason() map[mutation.Reason]int {
	out := make(map[mutation.Reason]int, len(s.mutationsByReason))
	for k, v := range s.mutationsByReason {
		out[k] = v
	}
	return out
}

// OfferLog returns the recorded offers, empty unless KeepOfferLog was set.
func (s *Simulation) OfferLog() []OfferRecord {
	out := make([]OfferRecord, len(s.offerLog))
	copy(out, s.offerLog)
	return out
}

func (s *Simulation) Recorder() *Recorder { return s.recorder }

// ActiveCount is the number of requests still waiting, assigned or picked.
func (s *Simulation) ActiveCount() int { return len(s.active) }

// PendingScheduled is the number of scheduled requests not yet released.
func (s *Simulation) PendingScheduled() int { return len(s.scheduled) }

func (s *Simulation) waitingCount() int {
	n := 0
	for _, r := range s.active {
		if r.Status == request.StatusWaiting {
			n++
		}
	}
	return n
}

func (s *Simulation) busyDrivers() int {
	n := 0
	for _, d := range s.drivers {
		if !d.IsIdle() {
			n++
		}
	}
	return n
}
