package queries

import (
	"context"
	"fmt"
	"time"

	"graphbench/internal/gremlin"
)

func sampling(env Env) map[string]any {
	return map[string]any{
		"coin":  env.Coin,
		"limit": gremlin.Int32(int32(env.Limit)),
	}
}

func transientIDArgs(ctx context.Context, ev Evaluator, env Env) ([]Args, error) {
	ids, err := ev.Eval(ctx, householdMembersScript, sampling(env))
	if err != nil {
		return nil, err
	}
	args := make([]Args, 0, len(ids))
	for _, id := range ids {
		args = append(args, Args{"transient_id": id})
	}
	return args, nil
}

func brandInteractionArgs(ctx context.Context, ev Evaluator, env Env) ([]Args, error) {
	ids, err := ev.Eval(ctx, sampleWebsitesScript, sampling(env))
	if err != nil {
		return nil, err
	}
	args := make([]Args, 0, len(ids))
	for _, id := range ids {
		args = append(args, Args{"website_url": id})
	}
	return args, nil
}

func earlyAdoptersArgs(ctx context.Context, ev Evaluator, env Env) ([]Args, error) {
	if env.Websites == nil {
		return nil, fmt.Errorf("no website source configured")
	}
	sites, err := env.Websites.Websites(ctx, ev)
	if err != nil {
		return nil, err
	}
	args := make([]Args, 0, len(sites))
	for _, site := range sites {
		args = append(args, Args{"thank_you_page_url": site})
	}
	return args, nil
}

// visitPath is one sampled walk: a visit of a page of some site, ending at
// another page of the same site used as the thank you page.
type visitPath struct {
	first    any
	ts       time.Time
	visited  any
	thankYou any
}

func undecidedUserCheckArgs(ctx context.Context, ev Evaluator, env Env) ([]Args, error) {
	raw, err := ev.Eval(ctx, userVisitPathsScript, sampling(env))
	if err != nil {
		return nil, err
	}
	var args []Args
	for _, p := range visitPaths(raw) {
		args = append(args, Args{
			"transient_id":       p.first,
			"website_url":        p.visited,
			"thank_you_page_url": p.thankYou,
			"since":              gremlin.Date(lookback(env, p.ts)),
			"min_visited_count":  gremlin.Int32(minVisits(env)),
		})
	}
	return args, nil
}

func undecidedUserAudienceArgs(ctx context.Context, ev Evaluator, env Env) ([]Args, error) {
	if env.Websites == nil {
		return nil, fmt.Errorf("no website source configured")
	}
	sites, err := env.Websites.Websites(ctx, ev)
	if err != nil {
		return nil, err
	}
	bindings := sampling(env)
	bindings["websites"] = sites
	raw, err := ev.Eval(ctx, websiteVisitPathsScript, bindings)
	if err != nil {
		return nil, err
	}
	var args []Args
	for _, p := range visitPaths(raw) {
		args = append(args, Args{
			"website_url":        p.first,
			"thank_you_page_url": p.thankYou,
			"since":              gremlin.Date(lookback(env, p.ts)),
			"min_visited_count":  gremlin.Int32(minVisits(env)),
		})
	}
	return args, nil
}

// lookback moves ts 30 to 60 days into the past.
func lookback(env Env, ts time.Time) time.Time {
	days := 30 + env.Rand.Intn(31)
	return ts.AddDate(0, 0, -days)
}

func minVisits(env Env) int32 {
	return int32(2 + env.Rand.Intn(4))
}

// visitPaths extracts five-step paths from raw results. Grouped traversals may
// wrap several paths in one list; malformed entries are skipped.
func visitPaths(raw []any) []visitPath {
	var out []visitPath
	for _, item := range raw {
		objs, ok := item.([]any)
		if !ok || len(objs) == 0 {
			continue
		}
		if _, nested := objs[0].([]any); nested {
			out = append(out, visitPaths(objs)...)
			continue
		}
		if len(objs) < 5 {
			continue
		}
		var ts time.Time
		switch v := objs[1].(type) {
		case time.Time:
			ts = v
		case int64:
			ts = time.UnixMilli(v).UTC()
		default:
			continue
		}
		out = append(out, visitPath{first: objs[0], ts: ts, visited: objs[2], thankYou: objs[4]})
	}
	return out
}
