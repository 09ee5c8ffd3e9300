package jobs

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercebridge/visearch/pkg/models"
)

func TestRegistry_GetUnknownID(t *testing.T) {
	reg := NewRegistry()

	_, err := reg.Get(uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistry_Lifecycle(t *testing.T) {
	reg := NewRegistry()
	id := reg.create(models.JobTypeImageSearch)

	job, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, job.Status)
	assert.Nil(t, job.StartedAt)

	reg.markRunning(id)
	job, err = reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusRunning, job.Status)
	assert.NotNil(t, job.StartedAt)

	reg.complete(id, json.RawMessage(`{"matches":[]}`))
	job, err = reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.JSONEq(t, `{"matches":[]}`, string(job.Result))
}

func TestRegistry_TerminalStatesAreImmutable(t *testing.T) {
	reg := NewRegistry()
	id := reg.create(models.JobTypeVideoSearch)
	reg.markRunning(id)
	reg.complete(id, json.RawMessage(`{"matches":[]}`))

	// None of these may move the job out of completed.
	reg.fail(id, "late failure")
	reg.markRunning(id)
	reg.complete(id, json.RawMessage(`{"matches":["other"]}`))

	job, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, job.Status)
	assert.JSONEq(t, `{"matches":[]}`, string(job.Result))
	assert.Nil(t, job.ErrorMessage)
}

func TestRegistry_RereadIsIdempotent(t *testing.T) {
	reg := NewRegistry()
	id := reg.create(models.JobTypeTextSearch)
	reg.markRunning(id)
	reg.fail(id, "embedder unreachable")

	first, err := reg.Get(id)
	require.NoError(t, err)
	second, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestRegistry_GetReturnsCopy(t *testing.T) {
	reg := NewRegistry()
	id := reg.create(models.JobTypeImageSearch)

	job, err := reg.Get(id)
	require.NoError(t, err)
	job.Status = models.JobStatusFailed

	fresh, err := reg.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, fresh.Status)
}
