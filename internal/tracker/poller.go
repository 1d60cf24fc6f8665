package tracker

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"firstview-tracker/internal/firstview"
	"firstview-tracker/internal/geo"
	"firstview-tracker/internal/locations"
	"firstview-tracker/internal/viewport"
)

const (
	DefaultInterval = 10 * time.Second
	DefaultTimeout  = 15 * time.Second

	TextCodeRiderNotFound   = "RIDER_NOT_FOUND"
	TextCodeVehicleNotFound = "VEHICLE_NOT_FOUND"
)

// Fetcher returns the current tracking records.
type Fetcher interface {
	GetEstimatedArrivals(ctx context.Context) (*firstview.EtaResponse, error)
}

type Publisher interface {
	PublishSnapshot(s Snapshot) error
}

// PollerMetrics receives fetch outcomes ("ok", "error", "stale"), snapshot sizes and
// viewport fits by action.
type PollerMetrics interface {
	FetchObserve(result string, d time.Duration)
	SnapshotSet(riders, points int)
	ViewportFitInc(action string)
}

// Snapshot is the displayed state after a successful fetch.
type Snapshot struct {
	FetchedAt time.Time              `json:"fetchedAt"`
	Riders    []locations.RiderGroup `json:"riders"`
	Points    []geo.Point            `json:"points"`
}

// Poller fetches tracking records on a fixed interval and owns the resulting snapshot.
// Ticks may overlap; whichever response arrives last wins. Responses that arrive after
// Stop are discarded.
type Poller struct {
	fetcher   Fetcher
	handle    viewport.MapHandle
	interval  time.Duration
	timeout   time.Duration
	publisher Publisher
	metrics   PollerMetrics

	mu           sync.Mutex
	running      bool
	generation   uint64
	snapshot     Snapshot
	result       locations.Result
	zoomAdjusted bool
	listeners    []func(Snapshot)

	fetchCtx context.Context
	cancel   context.CancelFunc
	loopWG   sync.WaitGroup
	inflight sync.WaitGroup
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTimeout bounds each fetch. In-flight fetches are not cancelled by Stop.
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

func WithPublisher(pub Publisher) Option {
	return func(p *Poller) { p.publisher = pub }
}

func WithMetrics(m PollerMetrics) Option {
	return func(p *Poller) { p.metrics = m }
}

func NewPoller(fetcher Fetcher, handle viewport.MapHandle, opts ...Option) *Poller {
	p := &Poller{
		fetcher:  fetcher,
		handle:   handle,
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		result:   locations.Aggregate(nil),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OnSnapshot registers fn to be called after every accepted fetch.
func (p *Poller) OnSnapshot(fn func(Snapshot)) {
	p.mu.Lock()
	p.listeners = append(p.listeners, fn)
	p.mu.Unlock()
}

// Start fetches immediately and then once per interval until Stop or ctx is done.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true
	p.generation++
	p.zoomAdjusted = false
	gen := p.generation
	fetchCtx := context.WithoutCancel(ctx)
	p.fetchCtx = fetchCtx
	p.mu.Unlock()

	p.spawn(fetchCtx, gen)
	p.loopWG.Add(1)
	go func() {
		defer p.loopWG.Done()
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				p.spawn(fetchCtx, gen)
			}
		}
	}()
	log.Printf("poller started (interval %s)", p.interval)
}

// Stop halts the ticker. Fetches already in flight run to completion and are dropped.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.generation++
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.loopWG.Wait()
	log.Printf("poller stopped")
}

// Refresh fetches now, outside the schedule. It does nothing when the poller is stopped.
func (p *Poller) Refresh() bool {
	p.mu.Lock()
	running, gen, ctx := p.running, p.generation, p.fetchCtx
	p.mu.Unlock()
	if !running {
		return false
	}
	p.spawn(ctx, gen)
	return true
}

// Wait blocks until every in-flight fetch has returned.
func (p *Poller) Wait() { p.inflight.Wait() }

func (p *Poller) spawn(ctx context.Context, gen uint64) {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.fetch(ctx, gen)
	}()
}

func (p *Poller) fetch(parent context.Context, gen uint64) {
	ctx, cancel := context.WithTimeout(parent, p.timeout)
	defer cancel()

	start := time.Now()
	resp, err := p.fetcher.GetEstimatedArrivals(ctx)
	if err != nil {
		log.Printf("fetch tracking records error: %v", err)
		p.observeFetch("error", start)
		return
	}
	var records []firstview.Result
	if resp != nil {
		records = resp.Result
	}
	agg := locations.Aggregate(records)
	snap := Snapshot{FetchedAt: time.Now(), Riders: agg.Groups, Points: agg.Points}

	p.mu.Lock()
	if !p.running || p.generation != gen {
		p.mu.Unlock()
		p.observeFetch("stale", start)
		return
	}
	p.snapshot = snap
	p.result = agg
	fitPoints := !p.zoomAdjusted && len(agg.Points) > 0
	listeners := append([]func(Snapshot){}, p.listeners...)
	p.mu.Unlock()

	p.observeFetch("ok", start)
	if p.metrics != nil {
		p.metrics.SnapshotSet(len(snap.Riders), len(snap.Points))
	}
	if fitPoints {
		if plan := p.apply(agg.Points); plan.Applied {
			p.mu.Lock()
			p.zoomAdjusted = true
			p.mu.Unlock()
		}
	}
	if p.publisher != nil {
		if err := p.publisher.PublishSnapshot(snap); err != nil {
			log.Printf("publish snapshot error: %v", err)
		}
	}
	for _, fn := range listeners {
		fn(snap)
	}
}

// Snapshot returns the last accepted snapshot.
func (p *Poller) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshot
}

// Focus frames all points of one rider.
func (p *Poller) Focus(riderID string) (viewport.Plan, error) {
	p.mu.Lock()
	_, ok := p.result.ByRider[riderID]
	pts := p.result.RiderPoints(riderID)
	p.mu.Unlock()
	if !ok {
		return viewport.Plan{}, riderNotFound(riderID)
	}
	return p.apply(pts), nil
}

// TrackVehicle frames the vehicle of the index-th record of a rider.
func (p *Poller) TrackVehicle(riderID string, index int) (viewport.Plan, error) {
	p.mu.Lock()
	recs, ok := p.result.ByRider[riderID]
	p.mu.Unlock()
	if !ok {
		return viewport.Plan{}, riderNotFound(riderID)
	}
	if index < 0 || index >= len(recs) {
		return viewport.Plan{}, vehicleNotFound("no record %d for rider %s", index, riderID)
	}
	pt, ok := locations.VehiclePoint(recs[index])
	if !ok {
		return viewport.Plan{}, vehicleNotFound("record %d for rider %s has no vehicle location", index, riderID)
	}
	return p.apply([]geo.Point{pt}), nil
}

func (p *Poller) apply(pts []geo.Point) viewport.Plan {
	plan := viewport.Apply(p.handle, pts)
	if plan.Applied && p.metrics != nil {
		p.metrics.ViewportFitInc(plan.Action.String())
	}
	return plan
}

func (p *Poller) observeFetch(result string, start time.Time) {
	if p.metrics != nil {
		p.metrics.FetchObserve(result, time.Since(start))
	}
}

func riderNotFound(riderID string) error {
	return goerrors.New("unknown rider "+riderID, goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(TextCodeRiderNotFound)
}

func vehicleNotFound(format string, args ...any) error {
	return goerrors.New(fmt.Sprintf(format, args...), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(TextCodeVehicleNotFound)
}
