package commands

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testChain = "../../../internal/snapshot/testdata/AAPL.json"

func TestRootRegistersCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{"api", "worker", "enqueue", "status", "queue", "rank", "migrate", "scheduler"} {
		assert.True(t, names[want], "missing command %s", want)
	}
}

func TestRankCommand(t *testing.T) {
	t.Cleanup(func() {
		rankJSON, rankSide, rankExplain, rankSymbol = false, "", "", ""
	})

	tests := []struct {
		name string
		args []string
	}{
		{name: "table", args: []string{"rank", testChain, "--top", "5"}},
		{name: "json calls only", args: []string{"rank", testChain, "--json", "--side", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootCmd.SetArgs(tt.args)
			require.NoError(t, rootCmd.Execute())
		})
	}
}

func TestRankCommand_Errors(t *testing.T) {
	t.Cleanup(func() {
		rankSide, rankSymbol = "", ""
	})

	rootCmd.SetArgs([]string{"rank", "does-not-exist.json"})
	assert.Error(t, rootCmd.Execute())

	rootCmd.SetArgs([]string{"rank", testChain, "--symbol", "MSFT"})
	assert.Error(t, rootCmd.Execute())
	rankSymbol = ""

	rootCmd.SetArgs([]string{"rank", testChain, "--side", "straddle"})
	assert.Error(t, rootCmd.Execute())
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "abc", shortHash("abc"))
	assert.Equal(t, "0123456789ab", shortHash("0123456789abcdef"))
}

func TestSchedulerStatusCommand(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/optionrank_test")
	t.Setenv("ENV", "development")
	t.Setenv("SNAPSHOT_SOURCE", "file")
	t.Setenv("RANK_WORKER_CONCURRENCY", "1")
	t.Setenv("RANK_MAX_RETRIES", "0")

	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/scheduler/jobs", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"jobs":[{"job_name":"reclaim_stale","schedule":"0 * * * * *","total_runs":2,"success_count":2,"success_rate":1}]}`))
	}))
	defer server.Close()
	t.Cleanup(func() { schedulerAdminAddr = "http://localhost:9109" })

	rootCmd.SetArgs([]string{"scheduler", "status", "--addr", server.URL + "/"})
	require.NoError(t, rootCmd.Execute())
	assert.Equal(t, 1, hits)
}

func TestSchedulerStatusCommand_WorkerDown(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost:5432/optionrank_test")
	t.Setenv("ENV", "development")
	t.Setenv("SNAPSHOT_SOURCE", "file")
	t.Setenv("RANK_WORKER_CONCURRENCY", "1")
	t.Setenv("RANK_MAX_RETRIES", "0")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()
	t.Cleanup(func() { schedulerAdminAddr = "http://localhost:9109" })

	rootCmd.SetArgs([]string{"scheduler", "status", "--addr", server.URL})
	assert.Error(t, rootCmd.Execute())
}
