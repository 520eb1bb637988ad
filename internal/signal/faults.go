package signal

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
)

type Fault string

const (
	FaultPowerMonitor Fault = "power-monitor"
	FaultStrip        Fault = "strip"
	// FaultForced is raised by hand to check the fault display.
	FaultForced Fault = "forced"
)

// Faults tracks which host-level problems are currently raised. As a Source
// it reports whether any fault is raised, which is what drives the override
// spans.
type Faults struct {
	mu     sync.Mutex
	raised map[Fault]struct{}
	any    *Cell
}

func NewFaults() *Faults {
	return &Faults{
		raised: make(map[Fault]struct{}),
		any:    NewCell(false),
	}
}

func (f *Faults) Set(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.raised[fault]; !ok {
		logger.With(zap.String("fault", string(fault))).Warn("Fault raised")
	}
	f.raised[fault] = struct{}{}
	f.any.Set(true)
}

func (f *Faults) Clear(fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.raised[fault]; ok {
		logger.With(zap.String("fault", string(fault))).Info("Fault cleared")
	}
	delete(f.raised, fault)
	f.any.Set(len(f.raised) > 0)
}

func (f *Faults) Has(fault Fault) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.raised[fault]
	return ok
}

func (f *Faults) Any() bool {
	return f.any.Get()
}

// List returns the raised faults in name order.
func (f *Faults) List() []Fault {
	f.mu.Lock()
	defer f.mu.Unlock()

	list := make([]Fault, 0, len(f.raised))
	for fault := range f.raised {
		list = append(list, fault)
	}
	sort.Slice(list, func(i, j int) bool { return list[i] < list[j] })
	return list
}

func (f *Faults) Watch(ctx context.Context) <-chan bool {
	return f.any.Watch(ctx)
}
