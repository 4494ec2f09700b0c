package model

import "time"

// ================ Config ================
type ConversationConfig struct {
	// TTL of the Redis transcript keys, parsed with time.ParseDuration.
	TTL string `envconfig:"CONVERSATION_TTL" default:"24h"`
	// MaxTurns bounds the history handed to the response model.
	MaxTurns int `envconfig:"CONVERSATION_MAX_TURNS" default:"10"`
}

type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"64"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0"`
}

type ResponseModelConfig struct {
	Model          string  `envconfig:"RESPONSE_MODEL" default:"gemini-2.5-flash"`
	MaxTokens      int     `envconfig:"RESPONSE_MAX_TOKENS" default:"1024"`
	Temperature    float32 `envconfig:"RESPONSE_TEMPERATURE" default:"0.5"`
	ThinkingBudget int32   `envconfig:"RESPONSE_THINKING_BUDGET" default:"0"`
}

// ResponsePromptConfig fills the persona instruction of the response model.
type ResponsePromptConfig struct {
	AgentName    string `envconfig:"PROMPT_AGENT_NAME" default:"Bella"`
	CompanyName  string `envconfig:"PROMPT_COMPANY_NAME" default:"Domu"`
	CallPurpose  string `envconfig:"PROMPT_CALL_PURPOSE" default:"assist the user in finding the right insurance and confirming their email and phone number"`
	HandoffParty string `envconfig:"PROMPT_HANDOFF_PARTY" default:"a licensed agent"`
}

type KnowledgeConfig struct {
	Source          string        `envconfig:"FAQ_FILE" required:"true"`
	EmbeddingModel  string        `envconfig:"KNOWLEDGE_EMBEDDING_MODEL" default:"text-embedding-004"`
	ExtractionModel string        `envconfig:"KNOWLEDGE_EXTRACTION_MODEL" default:"gemini-2.5-flash"`
	CacheBackend    string        `envconfig:"KNOWLEDGE_CACHE_BACKEND" default:"fs"`
	CacheDir        string        `envconfig:"KNOWLEDGE_CACHE_DIR" default:"knowledge_base"`
	CacheTTL        time.Duration `envconfig:"KNOWLEDGE_CACHE_TTL" default:"1h"`
	ForceRebuild    bool          `envconfig:"KNOWLEDGE_FORCE_REBUILD" default:"false"`
	MinSimilarity   float64       `envconfig:"KNOWLEDGE_MIN_SIMILARITY" default:"0.75"`
}

// CallConfig drives the orchestrator of a single call.
type CallConfig struct {
	ScriptFile       string        `envconfig:"SCRIPT_FILE"`
	RevenuePartner   string        `envconfig:"CALL_REVENUE_PARTNER" default:"Lifemart"`
	UserName         string        `envconfig:"CALL_USER_NAME" required:"true"`
	UserEmail        string        `envconfig:"CALL_USER_EMAIL" required:"true"`
	UserPhone        string        `envconfig:"CALL_USER_PHONE" required:"true"`
	MaxFallbackTurns int           `envconfig:"CALL_MAX_FALLBACK_TURNS" default:"6"`
	MaxReprompts     int           `envconfig:"CALL_MAX_REPROMPTS" default:"2"`
	MaxRetries       int           `envconfig:"CALL_MAX_RETRIES" default:"2"`
	RetryBackoff     time.Duration `envconfig:"CALL_RETRY_BACKOFF" default:"500ms"`
	TurnTimeout      time.Duration `envconfig:"CALL_TURN_TIMEOUT" default:"30s"`
	ListenTimeout    time.Duration `envconfig:"CALL_LISTEN_TIMEOUT" default:"60s"`
	ClarifyPrompt    string        `envconfig:"CALL_CLARIFY_PROMPT" default:"Then, what else can I help you with?"`
	RepromptMessage  string        `envconfig:"CALL_REPROMPT_MESSAGE" default:"Sorry, I didn't quite catch that. Could you say it again?"`
	ApologyMessage   string        `envconfig:"CALL_APOLOGY_MESSAGE" default:"I'm sorry, I'm having some trouble on my end."`
}

// Bindings returns the placeholder bindings used by scripts and prompts.
func (c CallConfig) Bindings() map[string]string {
	return map[string]string{
		"Revenue Partner": c.RevenuePartner,
		"User Name":       c.UserName,
		"User Email":      c.UserEmail,
		"User Phone":      c.UserPhone,
	}
}

type VoiceConfig struct {
	// Output is "console" or "elevenlabs".
	Output             string `envconfig:"VOICE_OUTPUT" default:"console"`
	ElevenLabsAPIKey   string `envconfig:"ELEVENLABS_API_KEY"`
	ElevenLabsVoiceID  string `envconfig:"ELEVENLABS_VOICE_ID" default:"nPczCjzI2devNBz1zQrb"`
	ElevenLabsModel    string `envconfig:"ELEVENLABS_MODEL" default:"eleven_flash_v2_5"`
	PlayerCommand      string `envconfig:"AUDIO_PLAYER_COMMAND" default:"aplay -q -f S16_LE -r 24000 -c 1"`
	EchoAgentToConsole bool   `envconfig:"VOICE_ECHO" default:"true"`
}

type StorageConfig struct {
	HistoryDir       string `envconfig:"HISTORY_DIR" default:"history"`
	RedisTranscripts bool   `envconfig:"TRANSCRIPT_REDIS" default:"false"`
}
