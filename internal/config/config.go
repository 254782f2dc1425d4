package config

// Config is the top-level application configuration.
type Config struct {
	Server      ServerConfig   `json:"server"`
	Agent       AgentConfig    `json:"agent"`
	LLM         LLMConfig      `json:"llm"`
	FallbackLLM *LLMConfig     `json:"fallback_llm,omitempty"`
	Storage     StorageConfig  `json:"storage"`
	Channels    ChannelsConfig `json:"channels"`
	LogLevel    string         `json:"log_level"`
}

type ServerConfig struct {
	Addr            string `json:"addr"`
	RequestTimeout  int    `json:"request_timeout_secs"`
	MaxMessageChars int    `json:"max_message_chars"`

	// AuthTokens maps bearer tokens to user IDs. This is a stand-in for a
	// real identity provider; the rest of the system only ever consumes the
	// resulting user ID.
	AuthTokens map[string]int64 `json:"auth_tokens,omitempty"`
}

type AgentConfig struct {
	SystemPrompt  string  `json:"system_prompt"`
	MaxIterations int     `json:"max_iterations"`
	HistoryWindow int     `json:"history_window"`
	MaxTokens     int     `json:"max_tokens"`
	Temperature   float64 `json:"temperature"`
}

type LLMConfig struct {
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	APIKey      string `json:"api_key,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`
	MaxRetries  int    `json:"max_retries"`
	TimeoutSecs int    `json:"timeout_secs"`
}

type StorageConfig struct {
	DBPath string `json:"db_path,omitempty"`
}

type ChannelsConfig struct {
	Telegram *TelegramConfig `json:"telegram,omitempty"`
	Console  bool            `json:"console,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// ChatUsers maps Telegram chat IDs to local user IDs. Messages from
	// unmapped chats are ignored.
	ChatUsers map[int64]int64 `json:"chat_users,omitempty"`
}
