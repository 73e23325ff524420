package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/studymate/internal/config"
)

type GeneratorEntry struct {
	Name      string
	Generator IGenerator
}

type groupGenerator struct {
	items []GeneratorEntry
}

// NewGroupGenerator tries each generator in order until one succeeds.
func NewGroupGenerator(items []GeneratorEntry) IGenerator {
	if len(items) == 0 {
		return nil
	}
	if len(items) == 1 {
		return items[0].Generator
	}
	return &groupGenerator{items: items}
}

func (g *groupGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var errs []error
	for i, item := range g.items {
		if item.Generator == nil {
			continue
		}
		res, err := item.Generator.Generate(ctx, prompt)
		if err == nil {
			return res, nil
		}
		errs = append(errs, err)
		logutil.GetLogger(ctx).Warn("generator failed", zap.Int("index", i), zap.String("name", item.Name), zap.Error(err))
		if ctx.Err() != nil {
			break
		}
	}
	if len(errs) == 0 {
		return "", ErrUnavailable
	}
	return "", pickError(errs)
}

// pickError prefers a rate limit over a missing key so callers can tell the
// user to retry later.
func pickError(errs []error) error {
	for _, err := range errs {
		if errors.Is(err, ErrRateLimited) {
			return err
		}
	}
	for _, err := range errs {
		if !errors.Is(err, ErrUnavailable) {
			return err
		}
	}
	return errs[len(errs)-1]
}

// NewGeneratorFromConfig builds the primary generator followed by any
// configured fallbacks.
func NewGeneratorFromConfig(cfg config.AIConfig) (IGenerator, error) {
	entries := make([]GeneratorEntry, 0, 1+len(cfg.Fallbacks))
	primary, err := NewProvider(cfg.Provider, cfg.Data)
	if err != nil {
		return nil, fmt.Errorf("init ai provider %s: %w", cfg.Provider, err)
	}
	entries = append(entries, GeneratorEntry{Name: primary.Name(), Generator: NewGenerator(primary, cfg.Model)})
	for _, fb := range cfg.Fallbacks {
		p, err := NewProvider(fb.Provider, fb.Data)
		if err != nil {
			return nil, fmt.Errorf("init ai fallback %s: %w", fb.Provider, err)
		}
		entries = append(entries, GeneratorEntry{Name: p.Name(), Generator: NewGenerator(p, fb.Model)})
	}
	return NewGroupGenerator(entries), nil
}
