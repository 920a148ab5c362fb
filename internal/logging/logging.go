package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds a production zap logger at level ("debug", "info", "warn",
// "error"; empty means info).
func New(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		config.Level = lvl
	}
	return config.Build()
}
