package config

import (
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	HTTPAddress   string
	DeepgramKey   string
	AssemblyAIKey string
	OpenAIKey     string
	DeepLKey      string
	DeepLBaseURL  string
	Debug         bool
}

// Load reads environment variables and returns Config with sane defaults.
func Load(logger *log.Logger) Config {
	if err := godotenv.Load(); err != nil {
		logger.Debug("no .env file loaded", "error", err)
	}

	addr := os.Getenv("HTTP_ADDRESS")
	if addr == "" {
		addr = ":8080"
	}

	deepgramKey := os.Getenv("DEEPGRAM_API_KEY")
	if deepgramKey == "" {
		logger.Warn("DEEPGRAM_API_KEY not set - /stt/deepgram will not work")
	}

	assemblyAIKey := os.Getenv("ASSEMBLYAI_API_KEY")
	if assemblyAIKey == "" {
		logger.Warn("ASSEMBLYAI_API_KEY not set - /stt/assemblyai will not work")
	}

	openAIKey := os.Getenv("OPENAI_API_KEY")
	if openAIKey == "" {
		logger.Warn("OPENAI_API_KEY not set - realtime translation, tone and splitting will not work")
	}

	deepLKey := os.Getenv("DEEPL_API_KEY")
	if deepLKey == "" {
		logger.Warn("DEEPL_API_KEY not set - quality translation will not work")
	}

	deepLBase := os.Getenv("DEEPL_BASE_URL")
	if deepLBase == "" {
		deepLBase = "https://api.deepl.com"
	}

	debug := os.Getenv("DEBUG") == "1" || os.Getenv("DEBUG") == "true"

	logger.Info("config loaded", "http_address", addr, "debug", debug)
	return Config{
		HTTPAddress:   addr,
		DeepgramKey:   deepgramKey,
		AssemblyAIKey: assemblyAIKey,
		OpenAIKey:     openAIKey,
		DeepLKey:      deepLKey,
		DeepLBaseURL:  deepLBase,
		Debug:         debug,
	}
}
