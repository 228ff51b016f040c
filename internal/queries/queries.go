// Package queries holds the benchmarked identity-graph traversals and the
// discovery of realistic arguments for them.
package queries

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"strings"
	"time"

	"graphbench/internal/gremlin"
)

const (
	// DiscoveryLimit bounds the number of argument sets collected per query.
	DiscoveryLimit = 1000
	// DiscoveryCoin is the sampling probability of discovery traversals.
	DiscoveryCoin = 0.1
	// All selects every query.
	All = "all"

	earlyAdoptersLimit = 5
)

var ErrNoArguments = errors.New("queries: discovery found no arguments")

// Args are the bindings of one query invocation.
type Args map[string]any

// Evaluator runs a script and returns every result.
type Evaluator interface {
	Eval(ctx context.Context, script string, bindings map[string]any) ([]any, error)
}

// Env is what argument discovery may draw on.
type Env struct {
	Rand     *rand.Rand
	Now      func() time.Time
	Websites WebsiteSource
	Coin     float64
	Limit    int
}

func (e Env) withDefaults() Env {
	if e.Rand == nil {
		e.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if e.Now == nil {
		e.Now = time.Now
	}
	if e.Coin <= 0 {
		e.Coin = DiscoveryCoin
	}
	if e.Limit <= 0 {
		e.Limit = DiscoveryLimit
	}
	return e
}

// Query is one named benchmark traversal.
type Query struct {
	Name   string
	Script string
	// Fixed bindings sent with every invocation.
	Fixed    Args
	discover func(ctx context.Context, ev Evaluator, env Env) ([]Args, error)
}

// Discover collects argument sets for the query.
func (q Query) Discover(ctx context.Context, ev Evaluator, env Env) ([]Args, error) {
	args, err := q.discover(ctx, ev, env.withDefaults())
	if err != nil {
		return nil, fmt.Errorf("queries: discover %s: %w", q.Name, err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("%w for %s", ErrNoArguments, q.Name)
	}
	return args, nil
}

// Bindings merges args with the fixed bindings.
func (q Query) Bindings(args Args) map[string]any {
	out := make(map[string]any, len(args)+len(q.Fixed))
	for k, v := range q.Fixed {
		out[k] = v
	}
	for k, v := range args {
		out[k] = v
	}
	return out
}

// Submitter starts a streamed evaluation.
type Submitter interface {
	Submit(ctx context.Context, script string, bindings map[string]any) (*gremlin.ResultStream, error)
}

// Run executes the query once and drains every result page.
func (q Query) Run(ctx context.Context, conn Submitter, args Args) ([]any, error) {
	rs, err := conn.Submit(ctx, q.Script, q.Bindings(args))
	if err != nil {
		return nil, err
	}
	return rs.All(ctx)
}

var catalog = []Query{
	{
		Name:     "get_sibling_attrs",
		Script:   siblingAttrsScript,
		discover: transientIDArgs,
	},
	{
		Name:     "undecided_user_check",
		Script:   undecidedUserCheckScript,
		discover: undecidedUserCheckArgs,
	},
	{
		Name:     "undecided_user_audience",
		Script:   undecidedUserAudienceScript,
		discover: undecidedUserAudienceArgs,
	},
	{
		Name:     "brand_interaction_audience",
		Script:   brandInteractionAudienceScript,
		discover: brandInteractionArgs,
	},
	{
		Name:     "get_all_transient_ids_in_household",
		Script:   householdTransientIDsScript,
		discover: transientIDArgs,
	},
	{
		Name:   "early_website_adopters",
		Script: earlyWebsiteAdoptersScript,
		Fixed: Args{
			"skip_single_transients": false,
			"adopters_limit":         gremlin.Int32(earlyAdoptersLimit),
		},
		discover: earlyAdoptersArgs,
	},
}

// Names lists every query in catalog order.
func Names() []string {
	names := make([]string, len(catalog))
	for i, q := range catalog {
		names[i] = q.Name
	}
	return names
}

func Lookup(name string) (Query, bool) {
	for _, q := range catalog {
		if q.Name == name {
			return q, true
		}
	}
	return Query{}, false
}

// Expand resolves names to queries. "all" stands for every query; duplicates
// are kept once in first-seen order.
func Expand(names []string) ([]Query, error) {
	var out []Query
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if name == All {
			for _, q := range catalog {
				out = appendUnique(out, q)
			}
			continue
		}
		q, ok := Lookup(name)
		if !ok {
			return nil, fmt.Errorf("queries: unknown query %q (want one of %s, %s)", name, strings.Join(Names(), ", "), All)
		}
		out = appendUnique(out, q)
	}
	if len(out) == 0 {
		return nil, errors.New("queries: no query selected")
	}
	return out, nil
}

func appendUnique(qs []Query, q Query) []Query {
	if slices.ContainsFunc(qs, func(x Query) bool { return x.Name == q.Name }) {
		return qs
	}
	return append(qs, q)
}
