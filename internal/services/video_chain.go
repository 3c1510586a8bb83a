package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/yungbote/autopilot-backend/internal/observability"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/videogen"
)

// VideoProvider is one text-to-video backend the chain can route to.
type VideoProvider interface {
	videogen.Generator
	Configured() bool
}

// VideoChain tries providers in priority order. Every provider but the last
// is best effort; the last one is the terminal fallback and its failure is
// returned.
type VideoChain interface {
	Generate(ctx context.Context, prompt string) ([]byte, string, error)
	Providers() []string
}

type videoChain struct {
	log       *logger.Logger
	providers []VideoProvider
	metrics   *observability.Metrics
}

func NewVideoChain(log *logger.Logger, metrics *observability.Metrics, providers ...VideoProvider) VideoChain {
	kept := make([]VideoProvider, 0, len(providers))
	for _, p := range providers {
		if p != nil {
			kept = append(kept, p)
		}
	}
	return &videoChain{
		log:       log.With("service", "VideoChain"),
		providers: kept,
		metrics:   metrics,
	}
}

func (c *videoChain) Providers() []string {
	out := make([]string, 0, len(c.providers))
	for _, p := range c.providers {
		out = append(out, p.Name())
	}
	return out
}

func (c *videoChain) Generate(ctx context.Context, prompt string) ([]byte, string, error) {
	if len(c.providers) == 0 {
		return nil, "", apierr.Wrap(apierr.ErrConfig, "no video provider key available")
	}
	last := len(c.providers) - 1
	for i, p := range c.providers {
		name := p.Name()
		if i == last {
			if !p.Configured() {
				return nil, "", apierr.Wrap(apierr.ErrConfig, "no video provider key available")
			}
			b, err := c.attempt(ctx, p, prompt)
			if err != nil {
				return nil, "", fmt.Errorf("%s: %w", name, err)
			}
			if len(b) == 0 {
				return nil, "", apierr.Wrap(apierr.ErrProviderFailed, "%s returned no video bytes", name)
			}
			return b, name, nil
		}

		if !p.Configured() {
			c.log.Debug("Video provider not configured, skipping", "provider", name)
			continue
		}
		b, err := c.attempt(ctx, p, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			c.log.Warn("Video provider failed, falling back", "provider", name, "error", err.Error())
			continue
		}
		if len(b) == 0 {
			c.log.Warn("Video provider returned no bytes, falling back", "provider", name)
			continue
		}
		return b, name, nil
	}
	return nil, "", apierr.Wrap(apierr.ErrConfig, "no video provider key available")
}

func (c *videoChain) attempt(ctx context.Context, p VideoProvider, prompt string) ([]byte, error) {
	start := time.Now()
	b, err := p.Generate(ctx, prompt)
	c.metrics.ObserveProvider(p.Name(), "video", err, time.Since(start))
	return b, err
}

// ParseProviderOrder reads a comma separated priority list, keeping the
// first occurrence of each name.
func ParseProviderOrder(raw string) []string {
	seen := map[string]bool{}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	if len(out) == 0 {
		return []string{"veo", "pika"}
	}
	return out
}
