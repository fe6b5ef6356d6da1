// Package resolver turns a free-text element description into a CSS selector
// by walking the page structure with the oracle, one scope at a time, and
// backtracking out of scopes the oracle rules out.
package resolver

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/pilot-cli/api/schemas"
	"github.com/xkilldash9x/pilot-cli/internal/config"
)

// Options bounds a search.
type Options struct {
	MaxIterations int
	RootSelector  string
	Snapshot      schemas.SnapshotOptions
}

// OptionsFromConfig maps the resolver config section.
func OptionsFromConfig(cfg config.ResolverConfig) Options {
	return Options{
		MaxIterations: cfg.MaxIterations,
		RootSelector:  cfg.RootSelector,
		Snapshot: schemas.SnapshotOptions{
			MaxDepth:     cfg.MaxDepth,
			TextLimit:    cfg.TextLimit,
			ExcludedTags: cfg.ExcludedTags,
		},
	}
}

// Result is the outcome of a search. Found is false when the iteration budget
// ran out or every scope was excluded.
type Result struct {
	Found      bool
	Selector   string
	Iterations int
	// Visited lists the scopes inspected, in order.
	Visited  []string
	Excluded []string
}

// Resolver runs selector searches. It is safe to reuse across searches but
// not for concurrent ones on the same page.
type Resolver struct {
	oracle schemas.LLMClient
	pages  schemas.Snapshotter
	opts   Options
	logger *zap.Logger

	onExclude func(scope string)
}

// New creates a Resolver.
func New(oracle schemas.LLMClient, pages schemas.Snapshotter, opts Options, logger *zap.Logger) *Resolver {
	if opts.RootSelector == "" {
		opts.RootSelector = "html"
	}
	return &Resolver{
		oracle: oracle,
		pages:  pages,
		opts:   opts,
		logger: logger.Named("resolver"),
	}
}

// Resolve searches for the element matching description. Exhausting the
// budget is reported through Result, not as an error; only cancellation of
// ctx is returned.
func (r *Resolver) Resolve(ctx context.Context, description string) (Result, error) {
	log := r.logger.With(zap.String("description", description))
	state := NewSearchState(r.opts.RootSelector)
	state.onExclude = func(scope string) {
		log.Debug("Scope excluded", zap.String("scope", scope))
		if r.onExclude != nil {
			r.onExclude(scope)
		}
	}
	res := Result{}
	problem := ""

	for res.Iterations < r.opts.MaxIterations {
		if err := ctx.Err(); err != nil {
			return r.finish(res, state), err
		}
		res.Iterations++
		scope := state.Top()
		res.Visited = append(res.Visited, scope)

		node, err := r.pages.Snapshot(ctx, scope, r.opts.Snapshot)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.finish(res, state), ctxErr
			}
			log.Debug("Scope snapshot failed; backtracking", zap.String("scope", scope), zap.Error(err))
			problem = fmt.Sprintf("the scope %q could not be inspected (%v), so it was excluded", scope, err)
			if !state.Backtrack("") {
				break
			}
			continue
		}

		snapshot, err := json.Marshal(node)
		if err != nil {
			return r.finish(res, state), fmt.Errorf("failed to encode snapshot of %q: %w", scope, err)
		}

		answer, err := r.oracle.Generate(ctx, schemas.GenerationRequest{
			SystemPrompt: systemPrompt,
			UserPrompt:   buildPrompt(description, string(snapshot), state, problem),
			Tier:         schemas.TierPowerful,
			Options:      schemas.GenerationOptions{Temperature: 0.1},
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return r.finish(res, state), ctxErr
			}
			log.Warn("Oracle call failed during selector search", zap.Error(err))
			problem = "the previous request failed, please answer again"
			continue
		}

		reply, err := ParseReply(answer)
		if err != nil {
			log.Debug("Malformed selector reply", zap.Error(err))
			problem = "your reply did not follow the required format: " + err.Error()
			continue
		}
		problem = ""

		log.Debug("Selector search turn",
			zap.Int("iteration", res.Iterations),
			zap.String("scope", scope),
			zap.Stringer("verdict", reply.Verdict),
			zap.String("selector", reply.Selector))

		switch reply.Verdict {
		case VerdictFound:
			res.Found = true
			res.Selector = reply.Selector
			log.Info("Selector resolved", zap.String("selector", reply.Selector), zap.Int("iterations", res.Iterations))
			return r.finish(res, state), nil

		case VerdictDescend:
			if err := state.Descend(reply.Selector); err != nil {
				problem = err.Error()
			}

		case VerdictBacktrack:
			if !state.Backtrack(reply.Selector) {
				log.Info("Every scope excluded; giving up")
				return r.finish(res, state), nil
			}
		}
	}

	log.Info("Selector search exhausted", zap.Int("iterations", res.Iterations))
	return r.finish(res, state), nil
}

func (r *Resolver) finish(res Result, state *SearchState) Result {
	res.Excluded = state.ExcludedList()
	return res
}
