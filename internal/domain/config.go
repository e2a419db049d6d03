package domain

// Config mirrors ~/.compai/config.yaml.
type Config struct {
	ConfigFormatVersion string           `yaml:"config_format_version" mapstructure:"config_format_version"`
	Endpoint            EndpointSettings `yaml:"endpoint" mapstructure:"endpoint"`
	Models              ModelSettings    `yaml:"models" mapstructure:"models"`
	Bridge              BridgeSettings   `yaml:"bridge" mapstructure:"bridge"`
	Logging             LoggingSettings  `yaml:"logging" mapstructure:"logging"`
}

// EndpointSettings locates the OpenAI-compatible inference endpoint.
type EndpointSettings struct {
	BaseURL        string `yaml:"base_url" mapstructure:"base_url"`
	APIKey         string `yaml:"api_key,omitempty" mapstructure:"api_key"`
	AuthEnvVar     string `yaml:"auth_env_var" mapstructure:"auth_env_var"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ModelSettings maps each purpose to a model name.
type ModelSettings struct {
	Chat        string  `yaml:"chat" mapstructure:"chat"`
	Vision      string  `yaml:"vision" mapstructure:"vision"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// BridgeSettings controls how host scripts are reached.
type BridgeSettings struct {
	Mode           string `yaml:"mode" mapstructure:"mode"`
	ListenAddr     string `yaml:"listen_addr" mapstructure:"listen_addr"`
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
	ProjectPath    string `yaml:"project_path" mapstructure:"project_path"`
}

// LoggingSettings configures the zerolog backend.
type LoggingSettings struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Bridge modes.
const (
	BridgeModeLocal     = "local"
	BridgeModeWebsocket = "websocket"
)
