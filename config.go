package foliolog

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the environment configuration of a portfolio. Values come from
// a .env file when present, then from the environment.
type Config struct {
	// Dir is the portfolio directory holding the event log and everything
	// derived from it.
	Dir string `env:"FOLIO_DIR" envDefault:"."`
	// Currency is the default currency for recorded amounts.
	Currency string `env:"FOLIO_CURRENCY" envDefault:"USD"`
	// LockTimeout bounds how long an operation waits for the log lock.
	LockTimeout time.Duration `env:"FOLIO_LOCK_TIMEOUT" envDefault:"5s"`
	// GenAIModel is the model backing the advisory chat.
	GenAIModel string `env:"FOLIO_GENAI_MODEL" envDefault:"gemini-2.5-flash"`
}

// LoadConfig loads .env (if any) and parses the environment. A missing
// .env file is not an error.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}
