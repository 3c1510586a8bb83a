package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/autopilot-backend/internal/data/db"
	"github.com/yungbote/autopilot-backend/internal/platform/envutil"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

const ConfigFileEnv = "AUTOPILOT_CONFIG_FILE"

type ServerConfig struct {
	Port          string   `yaml:"port"`
	LogMode       string   `yaml:"log_mode"`
	CORSOrigins   []string `yaml:"cors_origins"`
	JWTSecretKey  string   `yaml:"jwt_secret_key"`
	WebhookSecret string   `yaml:"webhook_secret"`
}

type RedisConfig struct {
	Addr        string        `yaml:"addr"`
	Prefix      string        `yaml:"prefix"`
	RunCacheTTL time.Duration `yaml:"run_cache_ttl"`
}

type ProviderKeys struct {
	CodeRabbitAPIKey  string `yaml:"coderabbit_api_key"`
	CodeRabbitBaseURL string `yaml:"coderabbit_base_url"`

	TogetherAPIKey  string `yaml:"together_api_key"`
	TogetherBaseURL string `yaml:"together_base_url"`
	TogetherModel   string `yaml:"together_model"`

	GroqAPIKey  string `yaml:"groq_api_key"`
	GroqBaseURL string `yaml:"groq_base_url"`
	GroqModel   string `yaml:"groq_model"`

	GoogleAPIKey    string        `yaml:"google_api_key"`
	VeoBaseURL      string        `yaml:"veo_base_url"`
	VeoAPIVersion   string        `yaml:"veo_api_version"`
	VeoModel        string        `yaml:"veo_model"`
	VeoVideoEnabled bool          `yaml:"veo_video_enabled"`
	VeoDeadline     time.Duration `yaml:"veo_deadline"`

	PikaAPIKey  string `yaml:"pika_api_key"`
	PikaBaseURL string `yaml:"pika_base_url"`

	OpenAIAPIKey     string `yaml:"openai_api_key"`
	OpenAIBaseURL    string `yaml:"openai_base_url"`
	OpenAIVideoModel string `yaml:"openai_video_model"`

	// VideoProviders is the comma separated provider order.
	VideoProviders    string        `yaml:"video_providers"`
	VideoPollInterval time.Duration `yaml:"video_poll_interval"`
	VideoPollAttempts int           `yaml:"video_poll_attempts"`
}

type KestraConfig struct {
	URL         string `yaml:"url"`
	Namespace   string `yaml:"namespace"`
	Flow        string `yaml:"flow"`
	GitHubToken string `yaml:"github_token"`
}

type StorageConfig struct {
	Mode            string `yaml:"mode"`
	GCSBucket       string `yaml:"gcs_bucket"`
	CredentialsFile string `yaml:"credentials_file"`
	CredentialsJSON string `yaml:"credentials_json"`
	EmulatorHost    string `yaml:"emulator_host"`

	MinIOEndpoint  string `yaml:"minio_endpoint"`
	MinIOAccessKey string `yaml:"minio_access_key"`
	MinIOSecretKey string `yaml:"minio_secret_key"`
	MinIOBucket    string `yaml:"minio_bucket"`
	MinIOUseSSL    bool   `yaml:"minio_use_ssl"`
	MinIORegion    string `yaml:"minio_region"`
}

type OrchestrationConfig struct {
	Timeout     time.Duration `yaml:"timeout"`
	StaleAfter  time.Duration `yaml:"stale_after"`
	RetainTasks int           `yaml:"retain_tasks"`
}

type TelemetryConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Endpoint       string        `yaml:"endpoint"`
	Headers        string        `yaml:"headers"`
	Insecure       bool          `yaml:"insecure"`
	SampleRatio    float64       `yaml:"sample_ratio"`
	ServiceName    string        `yaml:"service_name"`
	Environment    string        `yaml:"environment"`
	MetricsEnabled bool          `yaml:"metrics_enabled"`
	ScrapeInterval time.Duration `yaml:"scrape_interval"`
}

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      db.Config           `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Providers     ProviderKeys        `yaml:"providers"`
	Kestra        KestraConfig        `yaml:"kestra"`
	SlackWebhook  string              `yaml:"slack_webhook"`
	Storage       StorageConfig       `yaml:"storage"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Telemetry     TelemetryConfig     `yaml:"telemetry"`
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{Port: "8000", LogMode: "development"},
		Database: db.Config{
			Driver:       db.DriverPostgres,
			PostgresHost: "localhost",
			PostgresPort: "5432",
			PostgresUser: "postgres",
			PostgresName: "autopilot",
			SQLitePath:   "autopilot.db",
		},
		Redis: RedisConfig{Prefix: "autopilot:", RunCacheTTL: 30 * time.Second},
		Providers: ProviderKeys{
			VeoDeadline:       150 * time.Second,
			VideoProviders:    "veo,pika",
			VideoPollInterval: 5 * time.Second,
			VideoPollAttempts: 30,
		},
		Kestra: KestraConfig{URL: "http://kestra:8080", Namespace: "autopilot", Flow: "autopilot-review"},
		Storage: StorageConfig{Mode: "inline"},
		Orchestration: OrchestrationConfig{
			Timeout:     30 * time.Minute,
			StaleAfter:  45 * time.Minute,
			RetainTasks: 200,
		},
		Telemetry: TelemetryConfig{
			SampleRatio:    0.1,
			ServiceName:    "autopilot-backend",
			Environment:    "development",
			MetricsEnabled: true,
			ScrapeInterval: 15 * time.Second,
		},
	}
}

// LoadConfig layers defaults, the optional YAML file named by
// AUTOPILOT_CONFIG_FILE and the environment, in that order.
func LoadConfig(log *logger.Logger) (Config, error) {
	cfg := defaultConfig()
	if path := strings.TrimSpace(os.Getenv(ConfigFileEnv)); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
		if log != nil {
			log.Info("Loaded config file", "path", path)
		}
	}
	applyEnv(&cfg, log)
	return cfg, nil
}

func applyEnv(c *Config, log *logger.Logger) {
	s := func(name, cur string) string { return envutil.String(name, cur, log) }

	c.Server.Port = s("PORT", c.Server.Port)
	c.Server.LogMode = s("LOG_MODE", c.Server.LogMode)
	c.Server.CORSOrigins = envutil.List("CORS_ALLOWED_ORIGINS", c.Server.CORSOrigins)
	c.Server.JWTSecretKey = s("JWT_SECRET_KEY", c.Server.JWTSecretKey)
	c.Server.WebhookSecret = s("WEBHOOK_SECRET", c.Server.WebhookSecret)

	c.Database.Driver = s("DB_DRIVER", c.Database.Driver)
	c.Database.PostgresHost = s("POSTGRES_HOST", c.Database.PostgresHost)
	c.Database.PostgresPort = s("POSTGRES_PORT", c.Database.PostgresPort)
	c.Database.PostgresUser = s("POSTGRES_USER", c.Database.PostgresUser)
	c.Database.PostgresPassword = s("POSTGRES_PASSWORD", c.Database.PostgresPassword)
	c.Database.PostgresName = s("POSTGRES_NAME", c.Database.PostgresName)
	c.Database.PostgresSSLMode = s("POSTGRES_SSLMODE", c.Database.PostgresSSLMode)
	c.Database.SQLitePath = s("SQLITE_PATH", c.Database.SQLitePath)

	c.Redis.Addr = s("REDIS_ADDR", c.Redis.Addr)
	c.Redis.RunCacheTTL = envutil.Seconds("RUN_CACHE_TTL_SECONDS", c.Redis.RunCacheTTL)

	p := &c.Providers
	p.CodeRabbitAPIKey = s("CODERABBIT_API_KEY", p.CodeRabbitAPIKey)
	p.CodeRabbitBaseURL = s("CODERABBIT_BASE_URL", p.CodeRabbitBaseURL)
	p.TogetherAPIKey = s("TOGETHER_API_KEY", p.TogetherAPIKey)
	p.TogetherBaseURL = s("TOGETHER_BASE_URL", p.TogetherBaseURL)
	p.TogetherModel = s("TOGETHER_MODEL", p.TogetherModel)
	p.GroqAPIKey = s("GROQ_API_KEY", p.GroqAPIKey)
	p.GroqBaseURL = s("GROQ_BASE_URL", p.GroqBaseURL)
	p.GroqModel = s("GROQ_MODEL", p.GroqModel)
	p.GoogleAPIKey = s("GOOGLE_API_KEY", s("GOOGLE_GENAI_KEY", p.GoogleAPIKey))
	p.VeoBaseURL = s("VEO_BASE_URL", p.VeoBaseURL)
	p.VeoAPIVersion = s("VEO_API_VERSION", p.VeoAPIVersion)
	p.VeoModel = s("VEO_MODEL", p.VeoModel)
	p.VeoVideoEnabled = envutil.Bool("VEO_VIDEO_ENABLED", p.VeoVideoEnabled)
	p.VeoDeadline = envutil.Seconds("VEO_DEADLINE_SECONDS", p.VeoDeadline)
	p.PikaAPIKey = s("PIKA_API_KEY", p.PikaAPIKey)
	p.PikaBaseURL = s("PIKA_BASE_URL", p.PikaBaseURL)
	p.OpenAIAPIKey = s("OPENAI_API_KEY", p.OpenAIAPIKey)
	p.OpenAIBaseURL = s("OPENAI_BASE_URL", p.OpenAIBaseURL)
	p.OpenAIVideoModel = s("OPENAI_VIDEO_MODEL", p.OpenAIVideoModel)
	p.VideoProviders = s("VIDEO_PROVIDERS", p.VideoProviders)
	p.VideoPollInterval = envutil.Seconds("VIDEO_POLL_INTERVAL_SECONDS", p.VideoPollInterval)
	p.VideoPollAttempts = envutil.Int("VIDEO_POLL_MAX_ATTEMPTS", p.VideoPollAttempts)

	c.Kestra.URL = s("KESTRA_URL", c.Kestra.URL)
	c.Kestra.Namespace = s("KESTRA_NAMESPACE", c.Kestra.Namespace)
	c.Kestra.Flow = s("KESTRA_FLOW", c.Kestra.Flow)
	c.Kestra.GitHubToken = s("GITHUB_TOKEN", c.Kestra.GitHubToken)
	c.SlackWebhook = s("SLACK_WEBHOOK", c.SlackWebhook)

	st := &c.Storage
	st.Mode = s("OBJECT_STORAGE_MODE", st.Mode)
	st.GCSBucket = s("ARTEFACT_GCS_BUCKET_NAME", st.GCSBucket)
	st.CredentialsFile = s("GOOGLE_APPLICATION_CREDENTIALS", st.CredentialsFile)
	st.CredentialsJSON = s("GOOGLE_APPLICATION_CREDENTIALS_JSON", st.CredentialsJSON)
	st.EmulatorHost = s("STORAGE_EMULATOR_HOST", st.EmulatorHost)
	st.MinIOEndpoint = s("MINIO_ENDPOINT", st.MinIOEndpoint)
	st.MinIOAccessKey = s("MINIO_ACCESS_KEY", st.MinIOAccessKey)
	st.MinIOSecretKey = s("MINIO_SECRET_KEY", st.MinIOSecretKey)
	st.MinIOBucket = s("MINIO_BUCKET", st.MinIOBucket)
	st.MinIOUseSSL = envutil.Bool("MINIO_USE_SSL", st.MinIOUseSSL)
	st.MinIORegion = s("MINIO_REGION", st.MinIORegion)

	c.Orchestration.Timeout = envutil.Seconds("ORCHESTRATION_TIMEOUT_SECONDS", c.Orchestration.Timeout)
	c.Orchestration.StaleAfter = envutil.Seconds("ORCHESTRATION_STALE_AFTER_SECONDS", c.Orchestration.StaleAfter)
	c.Orchestration.RetainTasks = envutil.Int("TASK_RETAIN", c.Orchestration.RetainTasks)

	t := &c.Telemetry
	t.Enabled = envutil.Bool("OTEL_ENABLED", t.Enabled)
	t.Endpoint = s("OTEL_EXPORTER_OTLP_ENDPOINT", t.Endpoint)
	t.Headers = s("OTEL_EXPORTER_OTLP_HEADERS", t.Headers)
	t.Insecure = envutil.Bool("OTEL_EXPORTER_OTLP_INSECURE", t.Insecure)
	t.SampleRatio = envutil.Float("OTEL_TRACES_SAMPLER_ARG", t.SampleRatio)
	t.ServiceName = s("OTEL_SERVICE_NAME", t.ServiceName)
	t.Environment = s("OTEL_ENVIRONMENT", t.Environment)
	t.MetricsEnabled = envutil.Bool("METRICS_ENABLED", t.MetricsEnabled)
	t.ScrapeInterval = envutil.Seconds("METRICS_SCRAPE_INTERVAL_SECONDS", t.ScrapeInterval)
}
