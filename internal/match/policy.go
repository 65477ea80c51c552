// Package match scores archives against target directories and derives
// automatic mappings from those scores.
package match

import (
	"context"
	"fmt"

	"github.com/ryanm101/zipmap/internal/inventory"
	"github.com/ryanm101/zipmap/internal/logging"
	"github.com/ryanm101/zipmap/internal/mapping"
)

// Policy decides which target, if any, a source is assigned from its scores.
type Policy int

const (
	// UniqueMatch assigns only when exactly one target has a positive score.
	UniqueMatch Policy = iota
	// BestMatch assigns when a single target holds the highest positive score.
	BestMatch
)

func (p Policy) String() string {
	switch p {
	case UniqueMatch:
		return "unique"
	case BestMatch:
		return "best"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// Choose returns the index of the chosen target. ok is false when the
// policy abstains.
func (p Policy) Choose(scores []int) (index int, ok bool) {
	switch p {
	case UniqueMatch:
		index, positive := -1, 0
		for i, s := range scores {
			if s > 0 {
				index = i
				positive++
			}
		}
		return index, positive == 1

	case BestMatch:
		index, best, holders := -1, 0, 0
		for i, s := range scores {
			switch {
			case s > best:
				index, best, holders = i, s, 1
			case s == best && s > 0:
				holders++
			}
		}
		return index, best > 0 && holders == 1
	}
	return -1, false
}

// Scorer computes scores between archives and target directories.
type Scorer interface {
	// Refresh reloads whatever the scorer needs for inv.
	Refresh(ctx context.Context, inv *inventory.Inventory) error
	// Scores returns one score per target, in target order.
	Scores(ctx context.Context, source inventory.SourceItem, targets []inventory.TargetItem) ([]int, error)
}

// AutoMap builds a fresh mapping for inv under policy. Previous assignments
// are never consulted.
func AutoMap(ctx context.Context, scorer Scorer, inv *inventory.Inventory, policy Policy) (*mapping.Mapping, error) {
	if err := scorer.Refresh(ctx, inv); err != nil {
		return nil, fmt.Errorf("failed to refresh scores: %w", err)
	}

	m := mapping.Initial(inv.Sources)
	for _, source := range inv.Sources {
		scores, err := scorer.Scores(ctx, source, inv.Targets)
		if err != nil {
			return nil, fmt.Errorf("failed to score %s: %w", source.Path, err)
		}

		index, ok := policy.Choose(scores)
		logging.Debug("scored source", "source", source.Path, "policy", policy.String(),
			"scores", scores, "assigned", ok)
		if !ok {
			continue
		}
		if err := m.Assign(source, inv.Targets[index]); err != nil {
			return nil, err
		}
	}
	logging.Debug("auto mapping done", "policy", policy.String(),
		"sources", m.Len(), "assigned", len(m.Assigned()))
	return m, nil
}
