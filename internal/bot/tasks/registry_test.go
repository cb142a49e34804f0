package tasks_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/envologia/envo/internal/bot/tasks"
	"github.com/envologia/envo/internal/config"
	"github.com/envologia/envo/internal/database"
)

type recordingStore struct {
	database.Store

	purgeMessageHorizon    time.Time
	purgeInvocationHorizon time.Time
	maintenanceRuns        int
}

func (r *recordingStore) PurgeOldData(_ context.Context, messageHorizon, invocationHorizon time.Time) error {
	r.purgeMessageHorizon = messageHorizon
	r.purgeInvocationHorizon = invocationHorizon
	return nil
}

func (r *recordingStore) RunSQLMaintenance(context.Context) error {
	r.maintenanceRuns++
	return nil
}

func testDeps(store database.Store) tasks.TaskDeps {
	return tasks.TaskDeps{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:  store,
		Config: &config.Config{
			Database: config.DatabaseConfig{RetentionDays: 30},
		},
	}
}

func TestRegisterAllTasks(t *testing.T) {
	t.Parallel()

	registry := tasks.RegisterAllTasks(testDeps(&recordingStore{}))

	assert.Contains(t, registry, "retention_sweep")
	assert.Contains(t, registry, "sql_maintenance")
	assert.Len(t, registry, 2)
}

func TestRetentionSweep_HorizonsFollowConfig(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	registry := tasks.RegisterAllTasks(testDeps(store))

	require.NoError(t, registry["retention_sweep"](context.Background()))

	now := time.Now().UTC()
	expectedMessages := now.AddDate(0, 0, -30)
	assert.WithinDuration(t, expectedMessages, store.purgeMessageHorizon, time.Minute)

	expectedInvocations := now.Add(-24 * time.Hour)
	assert.WithinDuration(t, expectedInvocations, store.purgeInvocationHorizon, time.Minute)
}

func TestSQLMaintenance_RunsStoreMaintenance(t *testing.T) {
	t.Parallel()

	store := &recordingStore{}
	registry := tasks.RegisterAllTasks(testDeps(store))

	require.NoError(t, registry["sql_maintenance"](context.Background()))
	assert.Equal(t, 1, store.maintenanceRuns)
}
