package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. Services receive it as *slog.Logger and must
// tolerate nil so pure packages stay silent in tests.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
