package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/praetorian-inc/fdsec/pkg/feed"
	"github.com/praetorian-inc/fdsec/pkg/hashlist"
	"github.com/praetorian-inc/fdsec/pkg/rule"
	"github.com/praetorian-inc/fdsec/pkg/types"
)

// loadSignatures loads the corpus at location: the builtin corpus when
// empty, a YAML or line file, or a line-format list over http(s).
// Malformed lines are logged and skipped.
func loadSignatures(ctx context.Context, location, include, exclude string) ([]*types.Signature, error) {
	loader := rule.NewLoader()

	var sigs []*types.Signature
	var bad []rule.LoadError
	var err error

	switch {
	case location == "" || location == "builtin":
		sigs, err = loader.LoadBuiltin()
	case feed.IsRemote(location):
		var lines []string
		lines, err = feed.FetchWithConfig(ctx, location, feedConfig())
		if err == nil {
			sigs, bad = loader.FromLines(lines)
		}
	default:
		sigs, bad, err = loader.LoadFile(location)
	}
	if err != nil {
		return nil, err
	}
	for _, e := range bad {
		logger.Warn("skipping malformed signature",
			zap.Int("line", e.Line),
			zap.String("text", e.Text),
			zap.Error(e.Err))
	}

	// Apply filtering if patterns specified
	if include != "" || exclude != "" {
		config := rule.FilterConfig{
			Include: rule.ParsePatterns(include),
			Exclude: rule.ParsePatterns(exclude),
		}
		sigs, err = rule.Filter(sigs, config)
		if err != nil {
			return nil, fmt.Errorf("filtering signatures: %w", err)
		}
	}

	logger.Debug("signatures loaded", zap.Int("count", len(sigs)), zap.Int("malformed", len(bad)))
	return sigs, nil
}

// loadHashLists fetches the blacklist and whitelist. Either location may
// be empty; nil is returned when both are.
func loadHashLists(ctx context.Context, blacklist, whitelist string) (*hashlist.Lists, error) {
	if blacklist == "" && whitelist == "" {
		return nil, nil
	}
	lists := &hashlist.Lists{}
	var err error
	if blacklist != "" {
		if lists.Blacklist, err = loadHashSet(ctx, blacklist); err != nil {
			return nil, fmt.Errorf("loading blacklist: %w", err)
		}
	}
	if whitelist != "" {
		if lists.Whitelist, err = loadHashSet(ctx, whitelist); err != nil {
			return nil, fmt.Errorf("loading whitelist: %w", err)
		}
	}
	return lists, nil
}

func loadHashSet(ctx context.Context, location string) (*hashlist.Set, error) {
	lines, err := feed.FetchWithConfig(ctx, location, feedConfig())
	if err != nil {
		return nil, err
	}
	set, bad := hashlist.FromLines(lines)
	for _, e := range bad {
		logger.Warn("skipping malformed digest", zap.String("list", location), zap.Error(e))
	}
	return set, nil
}

func feedConfig() feed.Config {
	cfg := feed.DefaultConfig()
	cfg.Logger = logger
	return cfg
}
