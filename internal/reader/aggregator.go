// Package reader keeps the metadata shown on a documentation reader page
// consistent while the viewed entity changes.
//
// An Aggregator fetches entity metadata and site metadata for the adopted
// entity reference concurrently and merges the outcomes into one ReadModel.
// All state changes are applied by a single goroutine, so subscribers see
// updates in the order they were applied, and never see results fetched
// for a reference other than the model's own.
package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dnswlt/techdocs/internal/api"
	"github.com/dnswlt/techdocs/internal/catalog"
	"github.com/dnswlt/techdocs/internal/techdocs"
)

var (
	ErrClosed = errors.New("aggregator is closed")
)

// FieldStatus is the state of one field of the ReadModel.
type FieldStatus int

const (
	// The fetch for the field has not settled yet.
	Pending FieldStatus = iota
	// The fetch returned a value.
	Ready
	// The fetch settled, but the source had nothing to report.
	Absent
	// The fetch failed. The failure was reported to the ErrorReporter.
	Failed
)

func (s FieldStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Absent:
		return "absent"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("FieldStatus(%d)", int(s))
}

// ReadModel is an immutable snapshot of the metadata of one entity.
// Entity and Site are nil until their fetch settled with a value.
// The pointed-to values are shared between snapshots and must not be modified.
type ReadModel struct {
	Ref          catalog.Ref
	Entity       *api.EntityMetadata
	Site         *api.SiteMetadata
	EntityStatus FieldStatus
	SiteStatus   FieldStatus
	// Generation counts adoptions. It changes whenever the model is replaced for a new Ref.
	Generation uint64
	// Version counts all changes of the model, including replacements.
	Version uint64
}

// Settled reports whether both fetches for the model's Ref have settled.
func (m ReadModel) Settled() bool {
	return m.Generation > 0 && m.EntityStatus != Pending && m.SiteStatus != Pending
}

// Listener is called with every new snapshot.
// Listeners run on the aggregator's goroutine: they must return quickly and
// must not call Adopt, WaitSettled, or Close.
type Listener func(ReadModel)

type Option func(*Aggregator)

// WithErrorReporter sets the receiver of fetch failures.
// The default reporter logs them.
func WithErrorReporter(r techdocs.ErrorReporter) Option {
	return func(a *Aggregator) {
		a.reporter = r
	}
}

// WithBaseContext sets the context from which the contexts passed to the
// fetchers are derived.
func WithBaseContext(ctx context.Context) Option {
	return func(a *Aggregator) {
		a.baseCtx = ctx
	}
}

type adoptRequest struct {
	ref  catalog.Ref
	done chan struct{}
}

type fetchResult struct {
	generation uint64
	source     techdocs.Source
	entity     *api.EntityMetadata
	site       *api.SiteMetadata
	err        error
}

// Aggregator owns the ReadModel of the currently adopted entity reference.
type Aggregator struct {
	entities techdocs.EntityMetadataFetcher
	sites    techdocs.SiteMetadataFetcher
	reporter techdocs.ErrorReporter
	baseCtx  context.Context

	snapshot atomic.Pointer[ReadModel]

	listenersMut sync.Mutex
	listeners    map[int]Listener
	nextID       int

	adopts  chan adoptRequest
	results chan fetchResult
	closing chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// New creates an Aggregator and starts its goroutine. Callers must call
// Close when the aggregator is no longer needed.
func New(entities techdocs.EntityMetadataFetcher, sites techdocs.SiteMetadataFetcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		entities:  entities,
		sites:     sites,
		reporter:  techdocs.LogReporter{},
		baseCtx:   context.Background(),
		listeners: make(map[int]Listener),
		adopts:    make(chan adoptRequest),
		results:   make(chan fetchResult),
		closing:   make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.snapshot.Store(&ReadModel{})
	go a.run()
	return a
}

// Snapshot returns the current ReadModel. It never blocks.
func (a *Aggregator) Snapshot() ReadModel {
	return *a.snapshot.Load()
}

// Adopt makes ref the current entity reference. If ref differs from the
// current one, the model is replaced by an empty model for ref before Adopt
// returns, and both fetches are started. Adopting the current ref is a no-op.
// Adopt on a closed aggregator does nothing.
func (a *Aggregator) Adopt(ref catalog.Ref) {
	req := adoptRequest{ref: ref, done: make(chan struct{})}
	select {
	case a.adopts <- req:
	case <-a.closing:
		return
	}
	select {
	case <-req.done:
	case <-a.stopped:
	}
}

// Subscribe registers l to be called with every new snapshot.
// The returned function removes the subscription; it may be called more than once.
func (a *Aggregator) Subscribe(l Listener) (unsubscribe func()) {
	a.listenersMut.Lock()
	defer a.listenersMut.Unlock()
	id := a.nextID
	a.nextID++
	a.listeners[id] = l
	return func() {
		a.listenersMut.Lock()
		defer a.listenersMut.Unlock()
		delete(a.listeners, id)
	}
}

// WaitSettled blocks until the current model is settled and returns it.
// If ctx is done first, it returns the latest snapshot and ctx's error.
func (a *Aggregator) WaitSettled(ctx context.Context) (ReadModel, error) {
	settled := make(chan ReadModel, 1)
	unsubscribe := a.Subscribe(func(m ReadModel) {
		if !m.Settled() {
			return
		}
		select {
		case settled <- m:
		default:
		}
	})
	defer unsubscribe()

	if m := a.Snapshot(); m.Settled() {
		return m, nil
	}
	select {
	case m := <-settled:
		return m, nil
	case <-ctx.Done():
		return a.Snapshot(), ctx.Err()
	case <-a.closing:
		return a.Snapshot(), ErrClosed
	}
}

// Close stops the aggregator. Fetches still in flight are cancelled and
// their results are dropped. No listener is called after Close returns.
func (a *Aggregator) Close() {
	a.once.Do(func() {
		close(a.closing)
	})
	<-a.stopped
}

func (a *Aggregator) isClosing() bool {
	select {
	case <-a.closing:
		return true
	default:
		return false
	}
}

func (a *Aggregator) run() {
	defer close(a.stopped)
	cancel := context.CancelFunc(func() {})
	defer func() { cancel() }()

	for {
		select {
		case <-a.closing:
			return

		case req := <-a.adopts:
			cur := a.Snapshot()
			if cur.Generation > 0 && cur.Ref == req.ref {
				close(req.done)
				continue
			}
			// Superseded fetches keep running until they notice the
			// cancellation; their results are dropped in apply.
			cancel()
			var ctx context.Context
			ctx, cancel = context.WithCancel(a.baseCtx)
			m := ReadModel{
				Ref:        req.ref,
				Generation: cur.Generation + 1,
				Version:    cur.Version + 1,
			}
			a.publish(m)
			close(req.done)
			a.startFetches(ctx, m.Generation, req.ref)

		case r := <-a.results:
			if a.isClosing() {
				return
			}
			a.apply(r)
		}
	}
}

// apply merges a settled fetch into the current model.
// Results for an earlier generation are stale and silently dropped.
func (a *Aggregator) apply(r fetchResult) {
	m := a.Snapshot()
	if r.generation != m.Generation {
		return
	}
	status := Ready
	if r.err != nil {
		status = Failed
		a.reporter.Report(r.err)
	}
	switch r.source {
	case techdocs.SourceEntity:
		m.Entity = nil
		if r.err == nil {
			m.Entity = r.entity
		}
		if status == Ready && m.Entity == nil {
			status = Absent
		}
		m.EntityStatus = status
	case techdocs.SourceSite:
		m.Site = nil
		if r.err == nil {
			m.Site = r.site
		}
		if status == Ready && m.Site == nil {
			status = Absent
		}
		m.SiteStatus = status
	}
	m.Version++
	a.publish(m)
}

// publish stores m as the current snapshot and notifies all listeners.
func (a *Aggregator) publish(m ReadModel) {
	a.snapshot.Store(&m)
	a.listenersMut.Lock()
	ls := make([]Listener, 0, len(a.listeners))
	for id := 0; id < a.nextID; id++ {
		if l, ok := a.listeners[id]; ok {
			ls = append(ls, l)
		}
	}
	a.listenersMut.Unlock()
	for _, l := range ls {
		l(m)
	}
}

func (a *Aggregator) startFetches(ctx context.Context, generation uint64, ref catalog.Ref) {
	go func() {
		r := fetchResult{generation: generation, source: techdocs.SourceEntity}
		r.entity, r.err = guardedFetch(techdocs.SourceEntity, ref, func() (*api.EntityMetadata, error) {
			return a.entities.FetchEntityMetadata(ctx, ref)
		})
		a.deliver(r)
	}()
	go func() {
		r := fetchResult{generation: generation, source: techdocs.SourceSite}
		r.site, r.err = guardedFetch(techdocs.SourceSite, ref, func() (*api.SiteMetadata, error) {
			return a.sites.FetchSiteMetadata(ctx, ref)
		})
		a.deliver(r)
	}()
}

func (a *Aggregator) deliver(r fetchResult) {
	select {
	case a.results <- r:
	case <-a.closing:
	}
}

// guardedFetch calls fetch and turns panics and untyped errors into *techdocs.FetchError.
func guardedFetch[T any](src techdocs.Source, ref catalog.Ref, fetch func() (*T, error)) (v *T, err error) {
	defer func() {
		if p := recover(); p != nil {
			v = nil
			err = &techdocs.FetchError{Source: src, Ref: ref, Err: fmt.Errorf("panic: %v", p)}
		}
	}()
	v, err = fetch()
	if err != nil {
		var fe *techdocs.FetchError
		if !errors.As(err, &fe) {
			err = &techdocs.FetchError{Source: src, Ref: ref, Err: err}
		}
		return nil, err
	}
	return v, nil
}
