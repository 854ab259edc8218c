package augment

import (
	"context"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/lehungry-robotum/commander/pkg/llm"
)

// State of a task under review.
type State int

const (
	Pending State = iota
	Generating
	Accepted
	Retried
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Generating:
		return "generating"
	case Accepted:
		return "accepted"
	case Retried:
		return "retried"
	case Rejected:
		return "rejected"
	}
	return "unknown"
}

// Decision is the operator's answer to a set of proposed variants.
type Decision int

const (
	Accept Decision = iota
	Reject
	Retry
)

// Decide maps an answer to the prompt "[y]/n/r". Anything that is not "n" or
// "r" accepts.
func Decide(input string) Decision {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "r":
		return Retry
	case "n":
		return Reject
	}
	return Accept
}

// Review tracks one task through generation and operator decisions.
type Review struct {
	TaskID   int64
	Original string
	Variants []string
	State    State
	Attempts int
}

// NewReview returns a pending review.
func NewReview(id int64, original string) *Review {
	return &Review{TaskID: id, Original: original}
}

// Begin starts a generation attempt.
func (r *Review) Begin() {
	r.State = Generating
	r.Variants = nil
	r.Attempts++
}

// Propose stores the variants of the current attempt.
func (r *Review) Propose(variants []string) {
	r.Variants = variants
}

// Apply records the decision. When done is true, entry is the cache entry of
// the task: the original alone on reject, followed by the variants on accept.
func (r *Review) Apply(d Decision) (entry []string, done bool) {
	switch d {
	case Retry:
		r.State = Retried
		return nil, false
	case Reject:
		r.State = Rejected
		return []string{r.Original}, true
	}
	r.State = Accepted
	return append([]string{r.Original}, r.Variants...), true
}

// Generator produces paraphrases of a task.
type Generator interface {
	Paraphrase(ctx context.Context, task string, n int) ([]string, error)
}

// Reviewer shows proposed variants and returns the operator's decision.
// genErr is the generation failure of the attempt, if any. An error from the
// reviewer stops the review.
type Reviewer interface {
	Review(ctx context.Context, r *Review, genErr error) (Decision, error)
}

func (o Options) variants() int {
	if o.Variants <= 0 {
		return llm.DefaultVariants
	}
	return o.Variants
}

func (o Options) generate(ctx context.Context, gen Generator, id int64, task string) ([]string, error) {
	variants, err := gen.Paraphrase(ctx, task, o.variants())
	if err != nil && o.Logger != nil {
		o.Logger.Warn("generation failed, continuing without variants", "task", id, "err", err)
	}
	return variants, err
}

// ReviewAll reviews every task in ascending id order, one at a time. A failed
// generation proposes no variants; the operator still decides.
func ReviewAll(ctx context.Context, mapping Mapping, gen Generator, reviewer Reviewer, opts Options) (Cache, error) {
	cache := make(Cache, len(mapping))
	for _, id := range SortedIDs(mapping) {
		r := NewReview(id, mapping[id])
		for {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			r.Begin()
			variants, genErr := opts.generate(ctx, gen, id, r.Original)
			if genErr != nil {
				variants = nil
			}
			r.Propose(variants)

			d, err := reviewer.Review(ctx, r, genErr)
			if err != nil {
				return nil, err
			}
			if entry, done := r.Apply(d); done {
				cache[id] = entry
				break
			}
		}
	}
	return cache, nil
}

// Precompute generates variants for all tasks without review, accepting every
// result. Up to opts.Concurrency requests run at once.
func Precompute(ctx context.Context, mapping Mapping, gen Generator, opts Options) (Cache, error) {
	var (
		mu    sync.Mutex
		cache = make(Cache, len(mapping))
	)

	g := new(errgroup.Group)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	} else {
		g.SetLimit(1)
	}

	for _, id := range SortedIDs(mapping) {
		task := mapping[id]
		g.Go(func() error {
			r := NewReview(id, task)
			r.Begin()
			variants, err := opts.generate(ctx, gen, id, task)
			if err == nil {
				r.Propose(variants)
			}
			entry, _ := r.Apply(Accept)

			mu.Lock()
			cache[id] = entry
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return cache, nil
}
