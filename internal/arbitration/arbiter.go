package arbitration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnavailable reports that the arbiter could not give a verdict. Callers fail open.
var ErrUnavailable = errors.New("arbiter unavailable")

// Record is the short description of one side of a candidate pair.
type Record struct {
	Title  string `json:"title"`
	Artist string `json:"artist,omitempty"`
	Date   string `json:"date"`
	Venue  string `json:"venue"`
}

type Pair struct {
	Left  Record `json:"left"`
	Right Record `json:"right"`
}

// Arbiter judges whether candidate pairs describe the same event. It returns one verdict
// per pair, in order.
type Arbiter interface {
	Name() string
	Judge(ctx context.Context, pairs []Pair) ([]bool, error)
}

// Disabled never judges; every pair stays distinct.
type Disabled struct{}

func (Disabled) Name() string {
	return "none"
}

func (Disabled) Judge(context.Context, []Pair) ([]bool, error) {
	return nil, fmt.Errorf("%w: arbitration disabled", ErrUnavailable)
}

type FactoryOptions struct {
	Endpoint string
	Model    string
	APIKey   string
	Timeout  time.Duration
}

// New returns the arbiter registered under name.
func New(name string, opts FactoryOptions) (Arbiter, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none", "disabled":
		return Disabled{}, nil
	case "llm":
		return NewLLMArbiter(opts.Endpoint, opts.Model, opts.APIKey, opts.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown arbiter %q", name)
	}
}
