package postgres

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"ammclient/internal/model"
)

// setupStore starts a Postgres container and applies sql/postgres migrations.
// It is skipped unless AMMCLIENT_INTEGRATION=1.
func setupStore(t *testing.T) *Store {
	t.Helper()
	if os.Getenv("AMMCLIENT_INTEGRATION") != "1" {
		t.Skip("set AMMCLIENT_INTEGRATION=1 to run postgres tests")
	}
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewStore(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	dir := filepath.Join(projectRoot(t), "sql", "postgres")
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".sql" {
			files = append(files, entry.Name())
		}
	}
	sort.Strings(files)
	for _, file := range files {
		sql, err := os.ReadFile(filepath.Join(dir, file))
		require.NoError(t, err)
		require.NoError(t, store.Exec(ctx, string(sql)), "migration %s", file)
	}
	return store
}

func projectRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find go.mod")
		}
		dir = parent
	}
}

func TestSubmissionJournal(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.PutSubmission(ctx, model.Submission{Hash: "a", Contract: "CPOOL", Method: "deposit", Status: model.SubmissionPending, SubmittedAt: t0, UpdatedAt: t0}))
	require.NoError(t, store.PutSubmission(ctx, model.Submission{Hash: "b", Contract: "CPOOL", Method: "claim", Status: model.SubmissionPending, SubmittedAt: t0.Add(time.Second), UpdatedAt: t0}))
	require.NoError(t, store.PutSubmission(ctx, model.Submission{Hash: "a", Contract: "CPOOL", Method: "deposit", Status: model.SubmissionConfirmed, Ledger: 7, SubmittedAt: t0.Add(time.Minute), UpdatedAt: t0.Add(time.Minute)}))

	pending, err := store.PendingSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].Hash)
	assert.Equal(t, "claim", pending[0].Method)
	assert.True(t, pending[0].SubmittedAt.Equal(t0.Add(time.Second)))
}

func TestPoolRegistry(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	pools := []model.Pool{{
		Address:       "CPOOL",
		Kind:          model.PoolConcentrated,
		Tokens:        []model.Token{{ID: model.NativeTokenID, Code: "XLM", Decimals: 7}, {ID: "CTOKEN", Code: "USDC", Decimals: 6}},
		FeeBps:        30,
		ShareDecimals: 7,
		TickSpacing:   60,
	}}
	require.NoError(t, store.UpsertPools(ctx, pools))
	pools[0].FeeBps = 10
	require.NoError(t, store.UpsertPools(ctx, pools))

	got, err := store.Pools(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, pools[0], got[0])
}
