package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var (
	ErrUnavailable = errors.New("ai service not configured")
	ErrRateLimited = errors.New("ai service rate limited")
)

type IProvider interface {
	Name() string
	Generate(ctx context.Context, model string, prompt string) (string, error)
}

type IGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type generator struct {
	provider IProvider
	model    string
}

func NewGenerator(p IProvider, model string) IGenerator {
	return &generator{provider: p, model: model}
}

func (g *generator) Generate(ctx context.Context, prompt string) (string, error) {
	res, err := g.provider.Generate(ctx, g.model, prompt)
	if err != nil {
		return "", classifyError(err)
	}
	return res, nil
}

// classifyError maps quota and throttling failures reported by any provider
// onto ErrRateLimited.
func classifyError(err error) error {
	if err == nil || errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUnavailable) {
		return err
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"resource_exhausted", "quota", "429", "too many requests", "rate limit"} {
		if strings.Contains(msg, marker) {
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
	}
	return err
}

type ProviderFactory func(args interface{}) (IProvider, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]ProviderFactory{}
)

func Register(name string, factory ProviderFactory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

func NewProvider(name string, args interface{}) (IProvider, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported ai provider: %s", name)
	}
	return factory(args)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return nil
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode ai provider config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode ai provider config: %w", err)
	}
	return nil
}
