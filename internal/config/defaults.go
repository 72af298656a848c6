package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "./data"
	}
	if cfg.Storage.IndexDir == "" {
		cfg.Storage.IndexDir = "./storage"
	}
	if cfg.LLM.Model == "" {
		cfg.LLM.Model = "gemini-1.5-flash"
	}
	if cfg.LLM.EmbedModel == "" {
		cfg.LLM.EmbedModel = "text-embedding-004"
	}
	if cfg.LLM.EmbedDimensions == 0 {
		cfg.LLM.EmbedDimensions = 768
	}
	if cfg.LLM.EmbedCacheSize == 0 {
		cfg.LLM.EmbedCacheSize = 10000
	}
	if cfg.Chat.ChunkSize == 0 {
		cfg.Chat.ChunkSize = 200
	}
	if cfg.Chat.ChunkOverlap == 0 {
		cfg.Chat.ChunkOverlap = 20
	}
	if cfg.Chat.TopK == 0 {
		cfg.Chat.TopK = 5
	}
	if cfg.Chat.MemoryTurns == 0 {
		cfg.Chat.MemoryTurns = 5
	}
	if cfg.Chat.QuizQuestions == 0 {
		cfg.Chat.QuizQuestions = 3
	}
	if cfg.Chat.KeywordWeight == 0 && cfg.Chat.SemanticWeight == 0 {
		cfg.Chat.KeywordWeight = 0.5
		cfg.Chat.SemanticWeight = 0.5
	}
	if cfg.Chat.MaxContextChars == 0 {
		cfg.Chat.MaxContextChars = 8000
	}
}
