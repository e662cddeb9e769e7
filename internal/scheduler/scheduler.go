// Package scheduler runs the simulation systems once per tick in an order
// that respects their declared dependencies.
//
// The order is computed once by Finalize and cached. Named subsets restrict
// which systems run without touching the graph; every subset must contain the
// dependencies of its members.
package scheduler

import (
	"container/heap"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ID names a system.
type ID string

// Priority breaks ordering ties between systems whose dependencies are all
// satisfied; higher runs first.
type Priority int

const (
	PriorityLowest  Priority = -2
	PriorityLow     Priority = -1
	PriorityNormal  Priority = 0
	PriorityHigh    Priority = 1
	PriorityHighest Priority = 2
)

// System is advanced once per tick.
type System interface {
	Update(dt float64)
}

// PreUpdater systems get a callback before any system updates this tick.
type PreUpdater interface {
	PreUpdate(dt float64)
}

// PostUpdater systems get a callback after every system has updated.
type PostUpdater interface {
	PostUpdate(dt float64)
}

// AllSystems is the implicit subset holding every registered system.
const AllSystems = ""

var (
	ErrDuplicate         = errors.New("system already registered")
	ErrCycle             = errors.New("dependency cycle")
	ErrUnknownDependency = errors.New("unknown dependency")
	ErrUnknownSystem     = errors.New("unknown system")
	ErrUnknownSubset     = errors.New("unknown subset")
	ErrSubsetDependency  = errors.New("subset misses a dependency")
)

// ConfigError reports a scheduler configuration failure.
type ConfigError struct {
	Op     string // register, subset, finalize, activate
	System ID
	Subset string
	Cycle  []ID
	Err    error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("scheduler ")
	b.WriteString(e.Op)
	if e.System != "" {
		fmt.Fprintf(&b, " %q", e.System)
	}
	if e.Subset != "" {
		fmt.Fprintf(&b, " subset %q", e.Subset)
	}
	b.WriteString(": ")
	b.WriteString(e.Err.Error())
	if len(e.Cycle) > 0 {
		ids := make([]string, len(e.Cycle))
		for i, id := range e.Cycle {
			ids[i] = string(id)
		}
		fmt.Fprintf(&b, " among [%s]", strings.Join(ids, ", "))
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

type descriptor struct {
	id       ID
	system   System
	priority Priority
	deps     []ID
	seq      int
}

// Scheduler holds the registered systems and their cached order.
type Scheduler struct {
	log *slog.Logger

	systems []*descriptor
	byID    map[ID]*descriptor
	subsets map[string]map[ID]bool

	finalized bool
	order     []*descriptor
	orders    map[string][]*descriptor
	active    string
}

// New creates an empty scheduler. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		log:     logger,
		byID:    make(map[ID]*descriptor),
		subsets: make(map[string]map[ID]bool),
	}
}

// Register adds a system that must run after every system in deps.
// Dependencies may name systems that are registered later. A registration
// that closes a cycle among the systems known so far is rejected and leaves
// the scheduler unchanged.
func (s *Scheduler) Register(id ID, sys System, priority Priority, deps ...ID) error {
	if _, ok := s.byID[id]; ok {
		return &ConfigError{Op: "register", System: id, Err: ErrDuplicate}
	}

	d := &descriptor{
		id:       id,
		system:   sys,
		priority: priority,
		deps:     append([]ID(nil), deps...),
		seq:      len(s.systems),
	}
	s.systems = append(s.systems, d)
	s.byID[id] = d

	if _, stuck := s.sort(s.systems, true); len(stuck) > 0 {
		s.systems = s.systems[:len(s.systems)-1]
		delete(s.byID, id)
		return &ConfigError{Op: "register", System: id, Cycle: stuck, Err: ErrCycle}
	}
	s.finalized = false
	return nil
}

// DefineSubset names a set of systems that can be activated together.
// Membership is checked by Finalize.
func (s *Scheduler) DefineSubset(name string, ids ...ID) error {
	if name == AllSystems {
		return &ConfigError{Op: "subset", Subset: name, Err: errors.New("reserved name")}
	}
	set := make(map[ID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	s.subsets[name] = set
	s.finalized = false
	return nil
}

// Finalize validates the configuration and caches the execution order.
// Calling it again without changes is a no-op.
func (s *Scheduler) Finalize() error {
	if s.finalized {
		return nil
	}

	for _, d := range s.systems {
		for _, dep := range d.deps {
			if _, ok := s.byID[dep]; !ok {
				return &ConfigError{Op: "finalize", System: d.id, Err: fmt.Errorf("%w %q", ErrUnknownDependency, dep)}
			}
		}
	}

	order, stuck := s.sort(s.systems, false)
	if len(stuck) > 0 {
		return &ConfigError{Op: "finalize", Cycle: stuck, Err: ErrCycle}
	}

	orders := map[string][]*descriptor{AllSystems: order}
	for name, members := range s.subsets {
		for id := range members {
			d, ok := s.byID[id]
			if !ok {
				return &ConfigError{Op: "finalize", Subset: name, System: id, Err: ErrUnknownSystem}
			}
			for _, dep := range d.deps {
				if !members[dep] {
					return &ConfigError{Op: "finalize", Subset: name, System: id,
						Err: fmt.Errorf("%w %q", ErrSubsetDependency, dep)}
				}
			}
		}
		var sub []*descriptor
		for _, d := range order {
			if members[d.id] {
				sub = append(sub, d)
			}
		}
		orders[name] = sub
	}

	if _, ok := orders[s.active]; !ok {
		s.active = AllSystems
	}
	s.order = order
	s.orders = orders
	s.finalized = true

	s.log.Debug("scheduler finalized", "order", idsOf(order), "subsets", len(s.subsets))
	return nil
}

// SetActiveSubset selects which subset Run executes. AllSystems selects
// every registered system.
func (s *Scheduler) SetActiveSubset(name string) error {
	if name != AllSystems {
		if _, ok := s.subsets[name]; !ok {
			return &ConfigError{Op: "activate", Subset: name, Err: ErrUnknownSubset}
		}
	}
	s.active = name
	return nil
}

// ActiveSubset returns the name of the active subset.
func (s *Scheduler) ActiveSubset() string {
	return s.active
}

// Order returns the cached order of the active subset.
func (s *Scheduler) Order() []ID {
	if !s.finalized {
		return nil
	}
	return idsOf(s.orders[s.active])
}

// Run advances the active systems by dt: every PreUpdate, then every Update,
// then every PostUpdate, each pass in cached order. Running an unfinalized
// scheduler is a programming error and panics.
func (s *Scheduler) Run(dt float64) {
	if !s.finalized {
		panic("scheduler: Run before Finalize")
	}
	active := s.orders[s.active]
	for _, d := range active {
		if p, ok := d.system.(PreUpdater); ok {
			p.PreUpdate(dt)
		}
	}
	for _, d := range active {
		d.system.Update(dt)
	}
	for _, d := range active {
		if p, ok := d.system.(PostUpdater); ok {
			p.PostUpdate(dt)
		}
	}
}

// sort is Kahn's algorithm over ds. The ready set is a heap ordered by
// priority, then registration order. It returns the order and, on a cycle,
// the systems that could not be placed. With lenient set, dependencies on
// unregistered systems are ignored.
func (s *Scheduler) sort(ds []*descriptor, lenient bool) ([]*descriptor, []ID) {
	indegree := make(map[ID]int, len(ds))
	dependents := make(map[ID][]*descriptor, len(ds))
	for _, d := range ds {
		indegree[d.id] += 0
		for _, dep := range d.deps {
			if _, ok := s.byID[dep]; !ok && lenient {
				continue
			}
			indegree[d.id]++
			dependents[dep] = append(dependents[dep], d)
		}
	}

	ready := &readyQueue{}
	for _, d := range ds {
		if indegree[d.id] == 0 {
			heap.Push(ready, d)
		}
	}

	order := make([]*descriptor, 0, len(ds))
	for ready.Len() > 0 {
		d := heap.Pop(ready).(*descriptor)
		order = append(order, d)
		for _, next := range dependents[d.id] {
			indegree[next.id]--
			if indegree[next.id] == 0 {
				heap.Push(ready, next)
			}
		}
	}

	if len(order) == len(ds) {
		return order, nil
	}
	var stuck []ID
	for _, d := range ds {
		if indegree[d.id] > 0 {
			stuck = append(stuck, d.id)
		}
	}
	return order, stuck
}

type readyQueue []*descriptor

func (q readyQueue) Len() int { return len(q) }
func (q readyQueue) Less(i, j int) bool {
	if q[i].priority != q[j].priority {
		return q[i].priority > q[j].priority
	}
	return q[i].seq < q[j].seq
}
func (q readyQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *readyQueue) Push(x any)   { *q = append(*q, x.(*descriptor)) }
func (q *readyQueue) Pop() any {
	old := *q
	n := len(old)
	d := old[n-1]
	*q = old[:n-1]
	return d
}

func idsOf(ds []*descriptor) []ID {
	ids := make([]ID, len(ds))
	for i, d := range ds {
		ids[i] = d.id
	}
	return ids
}
