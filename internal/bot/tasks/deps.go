// Package tasks defines the scheduled maintenance tasks and their registry.
package tasks

import (
	"log/slog"

	"github.com/envologia/envo/internal/config"
	"github.com/envologia/envo/internal/database"
)

// TaskDeps bundles the dependencies available to scheduled tasks.
type TaskDeps struct {
	Logger *slog.Logger
	Store  database.Store
	Config *config.Config
}
