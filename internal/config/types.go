package config

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 3020
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "decidepage"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0

	defaultExtractTimeoutSec = 120
	defaultRenderTimeoutSec  = 180
	defaultQueryTimeoutSec   = 60
	defaultMaxInputChars     = 60000
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                   `yaml:"port"`
	DSN            string                `yaml:"dsn"` // MySQL DSN, derived from Database when empty
	RedisURL       string                `yaml:"redis_url"`
	Database       DatabaseRuntimeConfig `yaml:"database"`
	Redis          RedisRuntimeConfig    `yaml:"redis"`
	Env            string                `yaml:"env"` // "development" | "production"
	AllowedOrigins []string              `yaml:"allowed_origins"`
	JWTSecret      string                `yaml:"jwt_secret"`
	Timezone       string                `yaml:"timezone"`
	AI             AIConfig              `yaml:"ai"`
	S3             S3Options             `yaml:"s3"`
	Pipeline       PipelineConfig        `yaml:"pipeline"`
}

type DatabaseRuntimeConfig struct {
	DSN       string            `yaml:"dsn"`
	URL       string            `yaml:"url"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Username  string            `yaml:"username"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	DBName    string            `yaml:"db_name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

type RedisRuntimeConfig struct {
	URL      string            `yaml:"url"`
	Host     string            `yaml:"host"`
	Port     int               `yaml:"port"`
	Username string            `yaml:"username"`
	Password string            `yaml:"password"`
	DB       int               `yaml:"db"`
	TLS      bool              `yaml:"tls"`
	Scheme   string            `yaml:"scheme"`
	Params   map[string]string `yaml:"params"`
}

// AIConfig declares the model providers and which model serves each concern.
type AIConfig struct {
	Providers     []AIProvider       `yaml:"providers" json:"providers"`
	ExtractModel  *AIModelAssignment `yaml:"extract_model" json:"extract_model,omitempty"`
	RenderModel   *AIModelAssignment `yaml:"render_model" json:"render_model,omitempty"`
	QueryModel    *AIModelAssignment `yaml:"query_model" json:"query_model,omitempty"`
	MaxInputChars int                `yaml:"max_input_chars" json:"max_input_chars"`
}

type AIProvider struct {
	ID           string `yaml:"id" json:"id"`
	Name         string `yaml:"name" json:"name"`
	Type         string `yaml:"type" json:"type"` // OpenAI | OpenAI-Compatible | Anthropic | OpenRouter
	APIKey       string `yaml:"api_key" json:"api_key"`
	Endpoint     string `yaml:"endpoint" json:"endpoint,omitempty"`
	DefaultModel string `yaml:"default_model" json:"default_model"`
	Enabled      bool   `yaml:"enabled" json:"enabled"`
}

type AIModelAssignment struct {
	ProviderID string `yaml:"provider_id" json:"provider_id"`
	Model      string `yaml:"model" json:"model"`
}

// S3Options configures the optional page archive bucket.
type S3Options struct {
	Enable          bool   `yaml:"enable" json:"enable"`
	Endpoint        string `yaml:"endpoint" json:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id" json:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key" json:"secret_access_key"`
	Bucket          string `yaml:"bucket" json:"bucket"`
	Region          string `yaml:"region" json:"region"`
	CustomDomain    string `yaml:"custom_domain" json:"custom_domain"`
	PathStyleAccess bool   `yaml:"path_style_access" json:"path_style_access"`
}

// PipelineConfig bounds the streaming generation stages.
type PipelineConfig struct {
	ExtractTimeoutSec int `yaml:"extract_timeout_sec"`
	RenderTimeoutSec  int `yaml:"render_timeout_sec"`
	QueryTimeoutSec   int `yaml:"query_timeout_sec"`
}
