package activity

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"clanactivity/internal/components/assert"
	"clanactivity/internal/components/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	report_roster_resolve_all = "roster.resolve-all"
	report_roster_failures    = "roster.failures"
)

// Policy decides what happens to a batch once a member fails to resolve.
type Policy int

const (
	// FailFast stops dispatching on the first failure and returns no members.
	FailFast Policy = iota
	// CollectAll resolves every member and returns the failures alongside the
	// sorted roster.
	CollectAll
)

func (p Policy) String() string {
	switch p {
	case FailFast:
		return "fail-fast"
	case CollectAll:
		return "collect-all"
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

func ParsePolicy(name string) (Policy, error) {
	switch name {
	case "fail-fast":
		return FailFast, nil
	case "collect-all":
		return CollectAll, nil
	}
	return 0, fmt.Errorf("unknown batch policy %q, expected fail-fast or collect-all", name)
}

var ErrInvalidConcurrency = errors.New("concurrency must be at least 1")

// MemberResolver is implemented by Resolver.
type MemberResolver interface {
	Resolve(ctx context.Context, member *Member) error
}

// Observer is notified once for every member that was attempted.
type Observer interface {
	MemberResolved(member *Member, elapsed time.Duration, err error)
}

type RosterOptions struct {
	// Concurrency bounds how many members are resolved at once, it does not
	// bound the requests a single member makes.
	Concurrency int
	Policy      Policy
	// Observer is optional.
	Observer Observer
}

type Failure struct {
	Member *Member
	Err    error
}

type Report struct {
	// Members is sorted by LastActive, least recently active first.
	Members  []*Member
	Failures []Failure
}

type Roster struct {
	resolver MemberResolver
	opts     RosterOptions
	tel      telemetry.API
}

func NewRoster(resolver MemberResolver, opts RosterOptions, tel telemetry.API) Roster {
	assert.NotNil(resolver)
	assert.NotNil(tel)

	return Roster{
		resolver: resolver,
		opts:     opts,
		tel:      telemetry.NewScopedAPI("activity", tel),
	}
}

type indexedFailure struct {
	index int
	Failure
}

// ResolveAll resolves every member with at most opts.Concurrency resolutions in
// flight.
//
// With FailFast the first failure is returned and the report has no members.
// With CollectAll the report holds every member and the returned error joins
// all failures.
func (r Roster) ResolveAll(ctx context.Context, members []*Member) (Report, error) {
	if r.opts.Concurrency < 1 {
		return Report{}, ErrInvalidConcurrency
	}

	ctx, span := tracer.Start(ctx, "ResolveAll", trace.WithAttributes(
		attribute.Int("members", len(members)),
		attribute.Int("concurrency", r.opts.Concurrency),
		attribute.String("policy", r.opts.Policy.String()),
	))
	defer span.End()

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.opts.Concurrency)

	var mutex sync.Mutex
	var failures []indexedFailure

	for i, member := range members {
		if r.opts.Policy == FailFast && groupCtx.Err() != nil {
			break
		}

		group.Go(func() error {
			// a slot may free up only after another member already failed
			if r.opts.Policy == FailFast && groupCtx.Err() != nil {
				return nil
			}

			start := time.Now()
			err := r.resolver.Resolve(groupCtx, member)
			if r.opts.Observer != nil {
				r.opts.Observer.MemberResolved(member, time.Since(start), err)
			}
			if err == nil {
				return nil
			}

			mutex.Lock()
			failures = append(failures, indexedFailure{
				index:   i,
				Failure: Failure{Member: member, Err: err},
			})
			mutex.Unlock()

			if r.opts.Policy == FailFast {
				return err
			}
			return nil
		})
	}

	err := group.Wait()

	slices.SortFunc(failures, func(a, b indexedFailure) int {
		return a.index - b.index
	})
	report := Report{}
	errlist := make([]error, 0, len(failures))
	for _, f := range failures {
		report.Failures = append(report.Failures, f.Failure)
		errlist = append(errlist, f.Err)
	}

	if r.opts.Policy == FailFast {
		if err == nil {
			// the parent context was cancelled before any member failed
			err = ctx.Err()
		}
		if err != nil {
			r.tel.ReportBroken(report_roster_resolve_all, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "batch aborted")
			return report, err
		}
	} else {
		err = errors.Join(errlist...)
	}

	report.Members = SortByActivity(members)
	r.tel.ReportCount(report_roster_failures, int64(len(report.Failures)))
	if err != nil {
		span.SetStatus(codes.Error, "some members failed to resolve")
	}
	return report, err
}

// SortByActivity returns a copy of members ordered by LastActive, least
// recently active first. Members with equal activity keep their order.
func SortByActivity(members []*Member) []*Member {
	sorted := slices.Clone(members)
	slices.SortStableFunc(sorted, func(a, b *Member) int {
		return a.LastActive.Compare(b.LastActive)
	})
	return sorted
}
