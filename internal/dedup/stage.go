package dedup

import (
	"context"
	"fmt"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"horse.fit/gigradar/internal/event"
	"horse.fit/gigradar/internal/similarity"
)

const (
	DefaultPrimaryThreshold   = 0.85
	DefaultSecondaryThreshold = 0.80
	DefaultAmbiguityMargin    = 0.05
	DefaultWorkers            = 4

	scoreChunkSize = 256
)

type Options struct {
	PrimaryThreshold   float64
	SecondaryThreshold float64
	AmbiguityMargin    float64
	Workers            int
}

// Cluster groups batch indexes judged to describe the same event.
type Cluster struct {
	Members   []int       `json:"members"`
	Resolved  bool        `json:"resolved"`
	Canonical event.Event `json:"canonical"`
}

// Candidate is a fuzzy near-miss left for arbitration. Left and Right are batch indexes.
type Candidate struct {
	Left      int     `json:"left"`
	Right     int     `json:"right"`
	Primary   float64 `json:"primary"`
	Secondary float64 `json:"secondary"`
}

func (c Candidate) Score() float64 {
	return (c.Primary + c.Secondary) / 2
}

type Stats struct {
	Input       int `json:"input"`
	Dateless    int `json:"dateless"`
	ExactMerges int `json:"exact_merges"`
	FuzzyMerges int `json:"fuzzy_merges"`
	PairsScored int `json:"pairs_scored"`
	Ambiguous   int `json:"ambiguous"`
	Clusters    int `json:"clusters"`
}

type Result struct {
	Events    []event.Event
	Clusters  []Cluster
	Ambiguous []Candidate
	Stats     Stats
}

// Canonical returns the canonical record of every cluster in cluster order.
func (r Result) Canonical() []event.Event {
	out := make([]event.Event, 0, len(r.Clusters))
	for _, cluster := range r.Clusters {
		out = append(out, cluster.Canonical)
	}
	return out
}

// Apply unions the given candidate pairs into the existing clusters, rebuilds canonical
// records and marks every cluster resolved. Passing nil settles all near-misses as distinct.
func (r Result) Apply(merges []Candidate) Result {
	ds := NewDisjointSet(len(r.Events))
	for _, cluster := range r.Clusters {
		for _, member := range cluster.Members[1:] {
			ds.Union(cluster.Members[0], member)
		}
	}
	for _, pair := range merges {
		ds.Union(pair.Left, pair.Right)
	}

	out := Result{
		Events: r.Events,
		Stats:  r.Stats,
	}
	out.Clusters = buildClusters(r.Events, ds, nil)
	out.Stats.Ambiguous = 0
	out.Stats.Clusters = len(out.Clusters)
	return out
}

func DefaultOptions() Options {
	return Options{
		PrimaryThreshold:   DefaultPrimaryThreshold,
		SecondaryThreshold: DefaultSecondaryThreshold,
		AmbiguityMargin:    DefaultAmbiguityMargin,
		Workers:            DefaultWorkers,
	}
}

type Stage struct {
	keyer  event.Keyer
	opts   Options
	logger zerolog.Logger
}

func NewStage(keyer event.Keyer, opts Options, logger zerolog.Logger) *Stage {
	return &Stage{
		keyer:  keyer,
		opts:   normalizeOptions(opts),
		logger: logger,
	}
}

func (s *Stage) Options() Options {
	if s == nil {
		return normalizeOptions(Options{})
	}
	return s.opts
}

type keyedEvent struct {
	key     event.Key
	subject string
	venue   string
	dated   bool
}

type pairScore struct {
	primary   float64
	secondary float64
}

// Run clusters one batch. Exact-key groups merge first; then one representative per
// exact group is compared against the others sharing its category and calendar date.
func (s *Stage) Run(ctx context.Context, batch []event.Event) (Result, error) {
	if s == nil {
		return Result{}, fmt.Errorf("dedup stage is not initialized")
	}

	n := len(batch)
	result := Result{
		Events: batch,
		Stats:  Stats{Input: n},
	}
	if n == 0 {
		return result, nil
	}

	keyed := make([]keyedEvent, n)
	for i, e := range batch {
		key := s.keyer.Key(e)
		keyed[i] = keyedEvent{
			key:     key,
			subject: key.Subject,
			venue:   key.Venue,
			dated:   e.Date != nil,
		}
		if !keyed[i].dated {
			result.Stats.Dateless++
		}
	}

	ds := NewDisjointSet(n)

	// Exact pass. The first index of each key is the group representative.
	firstByKey := make(map[event.Key]int, n)
	representatives := make([]int, 0, n)
	for i := range batch {
		if !keyed[i].dated {
			continue
		}
		if first, ok := firstByKey[keyed[i].key]; ok {
			if ds.Union(first, i) {
				result.Stats.ExactMerges++
			}
			continue
		}
		firstByKey[keyed[i].key] = i
		representatives = append(representatives, i)
	}

	// Fuzzy pass, bucketed by category and calendar date.
	buckets := make(map[string][]int)
	bucketNames := make([]string, 0)
	for _, rep := range representatives {
		name := string(keyed[rep].key.Category) + "|" + keyed[rep].key.Day
		if _, ok := buckets[name]; !ok {
			bucketNames = append(bucketNames, name)
		}
		buckets[name] = append(buckets[name], rep)
	}
	sort.Strings(bucketNames)

	var pairs [][2]int
	for _, name := range bucketNames {
		members := buckets[name]
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				pairs = append(pairs, [2]int{members[i], members[j]})
			}
		}
	}
	result.Stats.PairsScored = len(pairs)

	scores, err := s.scorePairs(ctx, keyed, pairs)
	if err != nil {
		return Result{}, err
	}

	grouped := make(map[int]bool, n)
	for _, rep := range representatives {
		if groupSize(ds, rep) > 1 {
			grouped[rep] = true
		}
	}

	var nearMisses []Candidate
	for k, pair := range pairs {
		score := scores[k]
		if s.shouldMerge(score) {
			if ds.Union(pair[0], pair[1]) {
				result.Stats.FuzzyMerges++
			}
			grouped[pair[0]] = true
			grouped[pair[1]] = true
			continue
		}
		if s.isNearMiss(score) {
			nearMisses = append(nearMisses, Candidate{
				Left:      pair[0],
				Right:     pair[1],
				Primary:   score.primary,
				Secondary: score.secondary,
			})
		}
	}

	unresolved := make(map[int]bool)
	for _, candidate := range nearMisses {
		if ds.Connected(candidate.Left, candidate.Right) {
			continue
		}
		result.Ambiguous = append(result.Ambiguous, candidate)
		for _, idx := range []int{candidate.Left, candidate.Right} {
			if !grouped[idx] {
				unresolved[idx] = true
			}
		}
	}

	result.Clusters = buildClusters(batch, ds, unresolved)
	result.Stats.Ambiguous = len(result.Ambiguous)
	result.Stats.Clusters = len(result.Clusters)

	s.logger.Debug().
		Int("input", n).
		Int("dateless", result.Stats.Dateless).
		Int("exact_merges", result.Stats.ExactMerges).
		Int("fuzzy_merges", result.Stats.FuzzyMerges).
		Int("pairs_scored", result.Stats.PairsScored).
		Int("ambiguous", result.Stats.Ambiguous).
		Int("clusters", result.Stats.Clusters).
		Msg("dedup pass completed")

	return result, nil
}

// scorePairs fills one slot per pair; the caller reduces in pair order.
func (s *Stage) scorePairs(ctx context.Context, keyed []keyedEvent, pairs [][2]int) ([]pairScore, error) {
	scores := make([]pairScore, len(pairs))
	if len(pairs) == 0 {
		return scores, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Workers)
	for start := 0; start < len(pairs); start += scoreChunkSize {
		end := start + scoreChunkSize
		if end > len(pairs) {
			end = len(pairs)
		}
		g.Go(func() error {
			for k := start; k < end; k++ {
				if err := gctx.Err(); err != nil {
					return err
				}
				left, right := keyed[pairs[k][0]], keyed[pairs[k][1]]
				scores[k] = pairScore{
					primary:   similarity.Ratio(left.subject, right.subject),
					secondary: similarity.Ratio(left.venue, right.venue),
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("score candidate pairs: %w", err)
	}
	return scores, nil
}

func (s *Stage) shouldMerge(score pairScore) bool {
	return score.primary > s.opts.PrimaryThreshold && score.secondary > s.opts.SecondaryThreshold
}

func (s *Stage) isNearMiss(score pairScore) bool {
	return score.primary >= s.opts.PrimaryThreshold-s.opts.AmbiguityMargin &&
		score.secondary >= s.opts.SecondaryThreshold-s.opts.AmbiguityMargin
}

func groupSize(ds *DisjointSet, idx int) int {
	return ds.size[ds.Find(idx)]
}

func buildClusters(batch []event.Event, ds *DisjointSet, unresolved map[int]bool) []Cluster {
	groups := ds.Groups()
	clusters := make([]Cluster, 0, len(groups))
	for _, members := range groups {
		records := make([]event.Event, 0, len(members))
		for _, idx := range members {
			records = append(records, batch[idx])
		}
		resolved := true
		if len(members) == 1 && unresolved[members[0]] {
			resolved = false
		}
		clusters = append(clusters, Cluster{
			Members:   members,
			Resolved:  resolved,
			Canonical: Merge(records),
		})
	}
	return clusters
}

func normalizeOptions(opts Options) Options {
	if opts.PrimaryThreshold <= 0 || opts.PrimaryThreshold > 1 {
		opts.PrimaryThreshold = DefaultPrimaryThreshold
	}
	if opts.SecondaryThreshold <= 0 || opts.SecondaryThreshold > 1 {
		opts.SecondaryThreshold = DefaultSecondaryThreshold
	}
	if opts.AmbiguityMargin < 0 || opts.AmbiguityMargin >= 1 {
		opts.AmbiguityMargin = DefaultAmbiguityMargin
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	return opts
}
