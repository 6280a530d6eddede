package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brentmartinmiller/healthcare-etl-pipeline/internal/storage/redis"
	"github.com/brentmartinmiller/healthcare-etl-pipeline/pkg/dag"
)

func newStore(t *testing.T) *redis.Store {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	store := redis.NewFromClient(client)
	t.Cleanup(func() { store.Close() })
	return store
}

func makePatient(mrn string, sharing bool) *redis.Patient {
	return &redis.Patient{
		ID:            uuid.NewString(),
		MRN:           mrn,
		EncryptedName: "ciphertext-name",
		EncryptedDOB:  "ciphertext-dob",
		Gender:        "female",
		Consents:      map[string]bool{"data_sharing": sharing},
		FHIRResource:  map[string]any{"resourceType": "Patient", "mrn": mrn},
		CreatedAt:     time.Now().UTC().Truncate(time.Second),
	}
}

func TestStore_Patients(t *testing.T) {
	ctx := context.Background()

	t.Run("Save And Get", func(t *testing.T) {
		store := newStore(t)
		patient := makePatient("MRN-001", true)
		require.NoError(t, store.SavePatient(ctx, patient))

		got, err := store.GetPatient(ctx, patient.ID)
		require.NoError(t, err)
		assert.Equal(t, patient.MRN, got.MRN)
		assert.Equal(t, patient.EncryptedName, got.EncryptedName)
		assert.True(t, got.HasDataSharingConsent())
	})

	t.Run("Get Unknown", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetPatient(ctx, uuid.NewString())
		assert.ErrorIs(t, err, redis.ErrPatientNotFound)
	})

	t.Run("Duplicate MRN Rejected", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.SavePatient(ctx, makePatient("MRN-DUP", true)))

		err := store.SavePatient(ctx, makePatient("MRN-DUP", false))
		assert.ErrorIs(t, err, redis.ErrDuplicateMRN)
	})

	t.Run("List Preserves Insertion Order", func(t *testing.T) {
		store := newStore(t)
		first := makePatient("MRN-A", true)
		second := makePatient("MRN-B", false)
		second.CreatedAt = first.CreatedAt.Add(time.Second)
		require.NoError(t, store.SavePatient(ctx, first))
		require.NoError(t, store.SavePatient(ctx, second))

		patients, err := store.ListPatients(ctx)
		require.NoError(t, err)
		require.Len(t, patients, 2)
		assert.Equal(t, "MRN-A", patients[0].MRN)
		assert.Equal(t, "MRN-B", patients[1].MRN)
	})
}

func TestStore_Runs(t *testing.T) {
	ctx := context.Background()

	t.Run("Save And Get", func(t *testing.T) {
		store := newStore(t)
		duration := 1.25
		run := &redis.RunRecord{
			ID:          uuid.NewString(),
			Pipeline:    "patient_ingestion",
			Status:      dag.RunCompleted,
			StartedAt:   time.Now().UTC().Truncate(time.Second),
			CompletedAt: time.Now().UTC().Truncate(time.Second),
			InputCount:  3,
			OutputCount: 2,
			Tasks: map[string]dag.TaskSummary{
				"extract": {Status: dag.StatusSuccess, DurationMS: &duration},
			},
			Definition: dag.Definition{
				Name: "patient_ingestion",
				Tasks: map[string]dag.TaskDefinition{
					"extract": {DependsOn: []string{}},
				},
			},
		}
		require.NoError(t, store.SaveRun(ctx, run))

		got, err := store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, run.Status, got.Status)
		assert.Equal(t, run.InputCount, got.InputCount)
		assert.Equal(t, "patient_ingestion", got.Definition.Name)
		require.NotNil(t, got.Tasks["extract"].DurationMS)
		assert.Equal(t, 1.25, *got.Tasks["extract"].DurationMS)
	})

	t.Run("Get Unknown", func(t *testing.T) {
		store := newStore(t)
		_, err := store.GetRun(ctx, uuid.NewString())
		assert.ErrorIs(t, err, redis.ErrRunNotFound)
	})

	t.Run("List Most Recent First", func(t *testing.T) {
		store := newStore(t)
		old := &redis.RunRecord{ID: "run-old", Pipeline: "p", StartedAt: time.Now().Add(-time.Hour)}
		recent := &redis.RunRecord{ID: "run-new", Pipeline: "p", StartedAt: time.Now()}
		require.NoError(t, store.SaveRun(ctx, old))
		require.NoError(t, store.SaveRun(ctx, recent))

		ids, err := store.ListRuns(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"run-new", "run-old"}, ids)
	})
}
