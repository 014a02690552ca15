// pkg/flightplan/delegate.go
// Copyright(c) 2022-2024 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package flightplan

import (
	"slices"
	"sync"
)

// Delegate receives notifications about changes to a flight plan. Any of
// the functions may be nil. They are called synchronously, after the
// change is complete, in the order the delegates were added.
type Delegate struct {
	DepartureChanged       func(fp *FlightPlan)
	ArrivalChanged         func(fp *FlightPlan)
	WaypointsChanged       func(fp *FlightPlan)
	CurrentWaypointChanged func(fp *FlightPlan)
	Cleared                func(fp *FlightPlan)
	EndOfFlightPlan        func(fp *FlightPlan)
	Activated              func(fp *FlightPlan)
	Sequence               func(fp *FlightPlan)
}

// DelegateFactory returns a delegate for a new flight plan, or nil if it
// isn't interested in the plan.
type DelegateFactory func(fp *FlightPlan) *Delegate

var delegateFactories struct {
	mu        sync.Mutex
	factories []*DelegateFactory
}

// RegisterDelegateFactory arranges for f to be called for every flight
// plan created from now on; the returned function unregisters it.
func RegisterDelegateFactory(f DelegateFactory) (unregister func()) {
	delegateFactories.mu.Lock()
	defer delegateFactories.mu.Unlock()

	fp := &f
	delegateFactories.factories = append(delegateFactories.factories, fp)
	return func() {
		delegateFactories.mu.Lock()
		defer delegateFactories.mu.Unlock()
		delegateFactories.factories = slices.DeleteFunc(delegateFactories.factories,
			func(p *DelegateFactory) bool { return p == fp })
	}
}

func (fp *FlightPlan) applyDelegateFactories() {
	delegateFactories.mu.Lock()
	factories := slices.Clone(delegateFactories.factories)
	delegateFactories.mu.Unlock()

	for _, f := range factories {
		if d := (*f)(fp); d != nil {
			fp.AddDelegate(d)
		}
	}
}

type delegateEntry struct {
	d       *Delegate
	removed bool
}

func (fp *FlightPlan) AddDelegate(d *Delegate) {
	if d != nil {
		fp.delegates = append(fp.delegates, &delegateEntry{d: d})
	}
}

// RemoveDelegate unregisters d. It may be called from within a delegate
// callback; the delegate is then removed once the current notification
// has been delivered to all delegates.
func (fp *FlightPlan) RemoveDelegate(d *Delegate) {
	for _, e := range fp.delegates {
		if e.d == d {
			e.removed = true
		}
	}
	if fp.notifying == 0 {
		fp.compactDelegates()
	}
}

func (fp *FlightPlan) compactDelegates() {
	fp.delegates = slices.DeleteFunc(fp.delegates, func(e *delegateEntry) bool { return e.removed })
}

func (fp *FlightPlan) notify(get func(d *Delegate) func(*FlightPlan)) {
	fp.notifying++
	// Delegates added during the notification aren't called until the
	// next one.
	for _, e := range slices.Clone(fp.delegates) {
		if !e.removed {
			if f := get(e.d); f != nil {
				f(fp)
			}
		}
	}
	fp.notifying--
	if fp.notifying == 0 {
		fp.compactDelegates()
	}
}

type pendingChange uint8

const (
	pendingDeparture pendingChange = 1 << iota
	pendingArrival
	pendingWaypoints
	pendingCurrent
)

// lockDelegates starts a batch of changes; notifications are deferred
// until the matching unlockDelegates so that each is delivered at most
// once per batch.
func (fp *FlightPlan) lockDelegates() {
	fp.lockDepth++
}

func (fp *FlightPlan) unlockDelegates() {
	fp.lockDepth--
	if fp.lockDepth > 0 {
		return
	}

	// Delegates may make further changes; those are delivered
	// immediately as their own batch.
	for fp.pending != 0 {
		p := fp.pending
		fp.pending = 0
		fp.lockDepth++

		if p&pendingDeparture != 0 {
			fp.notify(func(d *Delegate) func(*FlightPlan) { return d.DepartureChanged })
		}
		if p&pendingArrival != 0 {
			fp.notify(func(d *Delegate) func(*FlightPlan) { return d.ArrivalChanged })
		}
		if p&pendingWaypoints != 0 {
			fp.notify(func(d *Delegate) func(*FlightPlan) { return d.WaypointsChanged })
		}
		if p&pendingCurrent != 0 {
			fp.notify(func(d *Delegate) func(*FlightPlan) { return d.CurrentWaypointChanged })
		}

		fp.lockDepth--
	}
}

func (fp *FlightPlan) markChanged(p pendingChange) {
	fp.lockDelegates()
	fp.pending |= p
	fp.unlockDelegates()
}
