package scheduler

import (
	"context"
	"errors"
	"sync"

	"github.com/sourcegraph/conc/pool"

	"github.com/noah-isme/timetable-api/internal/dto"
)

const (
	// DefaultMaxCandidates bounds the result list when no cap is configured.
	DefaultMaxCandidates = 200
	// DefaultParallelThreshold is the smallest first choice set worth splitting.
	DefaultParallelThreshold = 2

	checkEvery = 256
)

// Options tune a search.
type Options struct {
	MaxCandidates     int
	Workers           int
	ParallelThreshold int
}

// Candidate is a complete assignment. Picks[i] indexes Index.Choices[i].Sessions.
type Candidate struct {
	Picks []int
}

// Outcome is the raw result of one search.
type Outcome struct {
	Candidates   []Candidate
	Truncated    bool
	Reason       string
	NodesVisited int64
	Workers      int
	TimedOut     bool
}

// Enumerator walks an Index depth first and collects conflict-free assignments.
type Enumerator struct {
	opts Options
}

// NewEnumerator normalises opts and returns an enumerator.
func NewEnumerator(opts Options) *Enumerator {
	if opts.MaxCandidates <= 0 {
		opts.MaxCandidates = DefaultMaxCandidates
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ParallelThreshold <= 0 {
		opts.ParallelThreshold = DefaultParallelThreshold
	}
	return &Enumerator{opts: opts}
}

// Options returns the effective options.
func (e *Enumerator) Options() Options {
	return e.opts
}

// Enumerate returns assignments in discovery order, at most MaxCandidates of them.
// A deadline ends the search with whatever was found and TimedOut set; cancellation
// returns the context error.
func (e *Enumerator) Enumerate(ctx context.Context, ix *Index) (*Outcome, error) {
	if ix.Size() == 0 || ix.Infeasible() {
		return &Outcome{}, nil
	}
	if err := ctx.Err(); err != nil {
		return e.finish(&Outcome{Workers: 1}, err)
	}

	bits := make([][]uint32, len(ix.Choices))
	for i, choice := range ix.Choices {
		bits[i] = make([]uint32, len(choice.Sessions))
		for j, session := range choice.Sessions {
			bits[i][j] = slotBit(session.Day, session.Slot)
		}
	}

	if e.opts.Workers > 1 && len(bits[0]) >= e.opts.ParallelThreshold {
		return e.parallel(ctx, bits)
	}

	s := newSearch(bits, e.opts.MaxCandidates)
	err := s.run(ctx, -1)
	return e.finish(&Outcome{Candidates: s.found, NodesVisited: s.nodes, Workers: 1}, err)
}

// parallel explores each first choice as its own subtree and merges the subtree lists
// in first choice order, which reproduces the sequential discovery order.
func (e *Enumerator) parallel(ctx context.Context, bits [][]uint32) (*Outcome, error) {
	first := len(bits[0])
	limit := e.opts.MaxCandidates
	workers := e.opts.Workers
	if workers > first {
		workers = first
	}

	searchCtx, stop := context.WithCancel(ctx)
	defer stop()

	var (
		mu      sync.Mutex
		results = make([]*search, first)
		done    = make([]bool, first)
	)

	p := pool.New().WithMaxGoroutines(workers).WithContext(searchCtx)
	for root := 0; root < first; root++ {
		root := root
		p.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return nil
			}
			s := newSearch(bits, limit)
			err := s.run(ctx, root)

			mu.Lock()
			defer mu.Unlock()
			results[root] = s
			if err != nil {
				return nil
			}
			done[root] = true
			// once the finished prefix holds enough candidates later subtrees are moot
			total := 0
			for k := 0; k < first && done[k]; k++ {
				total += len(results[k].found)
				if total >= limit {
					stop()
					break
				}
			}
			return nil
		})
	}
	_ = p.Wait()

	out := &Outcome{Workers: workers}
	for _, s := range results {
		if s != nil {
			out.NodesVisited += s.nodes
		}
	}

	interrupted := false
	for root := 0; root < first && len(out.Candidates) < limit; root++ {
		if results[root] != nil {
			out.Candidates = append(out.Candidates, results[root].found...)
		}
		if !done[root] {
			interrupted = true
			break
		}
	}

	var err error
	if interrupted {
		err = ctx.Err()
	}
	return e.finish(out, err)
}

func (e *Enumerator) finish(out *Outcome, err error) (*Outcome, error) {
	limit := e.opts.MaxCandidates
	if len(out.Candidates) >= limit {
		out.Candidates = out.Candidates[:limit]
		out.Truncated = true
		out.Reason = dto.TruncatedByCap
		return out, nil
	}
	if err == nil {
		return out, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		out.TimedOut = true
		if len(out.Candidates) > 0 {
			out.Truncated = true
			out.Reason = dto.TruncatedByTimeout
		}
		return out, nil
	}
	return out, err
}

type search struct {
	bits  [][]uint32
	limit int
	found []Candidate
	nodes int64
}

func newSearch(bits [][]uint32, limit int) *search {
	return &search{bits: bits, limit: limit}
}

// run is an iterative depth first walk with an explicit cursor per depth. When root is
// not negative the first requirement is pinned to that choice.
func (s *search) run(ctx context.Context, root int) error {
	n := len(s.bits)
	cursor := make([]int, n)
	picks := make([]int, n)
	var occupied uint32

	floor := 0
	if root >= 0 {
		picks[0] = root
		occupied = s.bits[0][root]
		floor = 1
		s.nodes++
	}
	depth := floor

	for {
		if depth == n {
			s.found = append(s.found, Candidate{Picks: append([]int(nil), picks...)})
			if len(s.found) >= s.limit || depth == floor {
				return nil
			}
			depth--
			occupied &^= s.bits[depth][picks[depth]]
			continue
		}

		descended := false
		for cursor[depth] < len(s.bits[depth]) {
			choice := cursor[depth]
			cursor[depth]++
			bit := s.bits[depth][choice]
			if occupied&bit != 0 {
				continue
			}
			s.nodes++
			if s.nodes%checkEvery == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}
			picks[depth] = choice
			occupied |= bit
			depth++
			if depth < n {
				cursor[depth] = 0
			}
			descended = true
			break
		}
		if descended {
			continue
		}

		if depth == floor {
			return nil
		}
		depth--
		occupied &^= s.bits[depth][picks[depth]]
	}
}
