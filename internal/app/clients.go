package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/cache"
	"github.com/yungbote/autopilot-backend/internal/platform/coderabbit"
	"github.com/yungbote/autopilot-backend/internal/platform/kestra"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/objectstore"
	"github.com/yungbote/autopilot-backend/internal/platform/openai"
	"github.com/yungbote/autopilot-backend/internal/platform/pika"
	"github.com/yungbote/autopilot-backend/internal/platform/slack"
	"github.com/yungbote/autopilot-backend/internal/platform/veo"
	"github.com/yungbote/autopilot-backend/internal/services"
)

// Clients holds every outbound integration. Chat clients are nil when
// their key is missing; callers treat that as a configuration error.
type Clients struct {
	CodeRabbit *coderabbit.Client
	Together   openai.ChatClient
	Groq       openai.ChatClient
	Videos     []services.VideoProvider
	Kestra     *kestra.Client
	Slack      *slack.Notifier
	Cache      cache.Cache
	Blobs      objectstore.Store
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config) (Clients, error) {
	p := cfg.Providers
	var c Clients

	c.CodeRabbit = coderabbit.New(log, coderabbit.Config{
		APIKey:  p.CodeRabbitAPIKey,
		BaseURL: p.CodeRabbitBaseURL,
	})
	c.Together = optionalChat(log, openai.Config{
		Vendor:  "Together",
		APIKey:  p.TogetherAPIKey,
		BaseURL: firstNonEmpty(p.TogetherBaseURL, openai.TogetherBaseURL),
		Model:   firstNonEmpty(p.TogetherModel, services.DefaultReportModel),
	})
	c.Groq = optionalChat(log, openai.Config{
		Vendor:  "Groq",
		APIKey:  p.GroqAPIKey,
		BaseURL: firstNonEmpty(p.GroqBaseURL, openai.GroqBaseURL),
		Model:   firstNonEmpty(p.GroqModel, services.DefaultVideoPromptModel),
	})
	c.Videos = wireVideoProviders(log, p)

	c.Kestra = kestra.New(log, kestra.Config{
		BaseURL:   cfg.Kestra.URL,
		Namespace: cfg.Kestra.Namespace,
		Flow:      cfg.Kestra.Flow,
	})
	c.Slack = slack.New(log, cfg.SlackWebhook)

	c.Cache = cache.Nop{}
	if cfg.Redis.Addr != "" {
		rc, err := cache.NewRedis(log, cfg.Redis.Addr, cfg.Redis.Prefix)
		if err != nil {
			// The cache is an optimisation; run reads fall through to the database.
			log.Warn("Redis unavailable, run cache disabled", "addr", cfg.Redis.Addr, "error", err.Error())
		} else {
			c.Cache = rc
		}
	}

	blobs, err := objectstore.New(ctx, log, objectStoreConfig(cfg.Storage))
	if err != nil {
		return c, fmt.Errorf("init object storage: %w", err)
	}
	c.Blobs = blobs
	return c, nil
}

func optionalChat(log *logger.Logger, cfg openai.Config) openai.ChatClient {
	chat, err := openai.NewChatClient(log, cfg)
	if err != nil {
		if errors.Is(err, apierr.ErrConfig) {
			log.Warn("Chat client disabled", "vendor", cfg.Vendor, "reason", err.Error())
		} else {
			log.Error("Chat client init failed", "vendor", cfg.Vendor, "error", err.Error())
		}
		return nil
	}
	return chat
}

// wireVideoProviders builds the providers named by VIDEO_PROVIDERS in
// order. Unknown names are skipped.
func wireVideoProviders(log *logger.Logger, p ProviderKeys) []services.VideoProvider {
	var out []services.VideoProvider
	for _, name := range services.ParseProviderOrder(p.VideoProviders) {
		switch name {
		case "veo":
			out = append(out, veo.New(log, veo.Config{
				APIKey:       p.GoogleAPIKey,
				BaseURL:      p.VeoBaseURL,
				APIVersion:   p.VeoAPIVersion,
				Model:        p.VeoModel,
				Capabilities: veo.Capabilities{VideoGeneration: p.VeoVideoEnabled},
				PollInterval: p.VideoPollInterval,
				Deadline:     p.VeoDeadline,
			}))
		case "pika":
			out = append(out, pika.New(log, pika.Config{
				APIKey:       p.PikaAPIKey,
				BaseURL:      p.PikaBaseURL,
				PollInterval: p.VideoPollInterval,
				MaxPolls:     p.VideoPollAttempts,
			}))
		case "sora":
			vc, err := openai.NewVideoClient(log, openai.VideoConfig{
				Config: openai.Config{
					APIKey:  p.OpenAIAPIKey,
					BaseURL: p.OpenAIBaseURL,
					Model:   p.OpenAIVideoModel,
				},
				PollInterval: p.VideoPollInterval,
			})
			if err != nil {
				log.Warn("Sora provider disabled", "reason", err.Error())
				continue
			}
			out = append(out, vc)
		default:
			log.Warn("Unknown video provider ignored", "provider", name)
		}
	}
	return out
}

func objectStoreConfig(s StorageConfig) objectstore.Config {
	mode := objectstore.ParseMode(s.Mode)
	cfg := objectstore.Config{
		Mode:            mode,
		CredentialsJSON: s.CredentialsJSON,
		CredentialsFile: s.CredentialsFile,
		EmulatorHost:    s.EmulatorHost,
		Endpoint:        s.MinIOEndpoint,
		AccessKey:       s.MinIOAccessKey,
		SecretKey:       s.MinIOSecretKey,
		UseSSL:          s.MinIOUseSSL,
		Region:          s.MinIORegion,
	}
	if mode == objectstore.ModeMinIO {
		cfg.Bucket = s.MinIOBucket
	} else {
		cfg.Bucket = s.GCSBucket
	}
	return cfg
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c Clients) Close(log *logger.Logger) {
	if c.Cache != nil {
		if err := c.Cache.Close(); err != nil {
			log.Warn("Cache close failed", "error", err.Error())
		}
	}
	if c.Blobs != nil {
		if err := c.Blobs.Close(); err != nil {
			log.Warn("Object store close failed", "error", err.Error())
		}
	}
}

