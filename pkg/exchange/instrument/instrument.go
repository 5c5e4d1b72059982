// Package instrument manages the set of tradeable instruments. Instruments
// are created and deleted only through admin operations; the matching core
// treats them as immutable.
package instrument

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"sync"
)

var (
	ErrNotFound      = errors.New("instrument not found")
	ErrAlreadyExists = errors.New("instrument already exists")
	ErrInvalidTicker = errors.New("invalid ticker")

	tickerPattern = regexp.MustCompile(`^[A-Z]{2,10}$`)
)

// Instrument is a tradeable asset identified by its ticker.
type Instrument struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name"`
}

// Registry is a thread-safe instrument directory.
type Registry struct {
	mu          sync.RWMutex
	instruments map[string]Instrument
}

func NewRegistry() *Registry {
	return &Registry{instruments: make(map[string]Instrument)}
}

// Register adds a new instrument. The ticker must match ^[A-Z]{2,10}$.
func (r *Registry) Register(inst Instrument) error {
	if !tickerPattern.MatchString(inst.Ticker) {
		return fmt.Errorf("%w: %q", ErrInvalidTicker, inst.Ticker)
	}
	if inst.Name == "" {
		return fmt.Errorf("%w: empty name for %s", ErrInvalidTicker, inst.Ticker)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.instruments[inst.Ticker]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, inst.Ticker)
	}
	r.instruments[inst.Ticker] = inst
	return nil
}

// Get returns an instrument by ticker.
func (r *Registry) Get(ticker string) (Instrument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.instruments[ticker]
	if !ok {
		return Instrument{}, fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	return inst, nil
}

// Exists reports whether a ticker is registered.
func (r *Registry) Exists(ticker string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.instruments[ticker]
	return ok
}

// List returns all instruments sorted by ticker.
func (r *Registry) List() []Instrument {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Instrument, 0, len(r.instruments))
	for _, inst := range r.instruments {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Remove deletes an instrument. Balances and orders referencing the ticker
// are the caller's concern; this is an admin-only operation.
func (r *Registry) Remove(ticker string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.instruments[ticker]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, ticker)
	}
	delete(r.instruments, ticker)
	return nil
}
