package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fleveque/heliassets/internal/config"
	"github.com/fleveque/heliassets/internal/model"
	"github.com/fleveque/heliassets/internal/storage"
)

// writeConfig writes a config file that keeps everything inside dir and
// disables the SQLite ledger.
func writeConfig(t *testing.T, dir, extra string) string {
	t.Helper()
	body := fmt.Sprintf(`
storage:
  database_path: ""
log:
  level: error
fetch:
  items_file: %[1]s/items.yaml
  output_dir: %[1]s/photos
  delay: 0s
generate:
  items_file: %[1]s/items.yaml
  output_dir: %[1]s/generated
  delay: 0s
convert:
  dir: %[1]s/extract
%[2]s`, dir, extra)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func writeItems(t *testing.T, dir, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "items.yaml"), []byte(body), 0644))
}

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := rootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "heliassets dev\n", out)
}

func TestFetchCommand_EndToEnd(t *testing.T) {
	var photo bytes.Buffer
	require.NoError(t, jpeg.Encode(&photo, image.NewRGBA(image.Rect(0, 0, 32, 18)), nil))

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/w/api.php":
			if !strings.Contains(r.URL.Query().Get("gsrsearch"), "Ecureuil") {
				// No matches: the API leaves out "query" entirely.
				_, _ = w.Write([]byte(`{"batchcomplete":""}`))
				return
			}
			resp := map[string]any{
				"query": map[string]any{
					"pages": map[string]any{
						"1": map[string]any{
							"title": "File:AS350 in flight.jpg",
							"imageinfo": []map[string]any{{
								"thumburl":   srv.URL + "/img/as350.jpg",
								"thumbwidth": 1200,
								"mime":       "image/jpeg",
							}},
						},
						"2": map[string]any{
							"title": "File:AS350 wreck.jpg",
							"imageinfo": []map[string]any{{
								"thumburl":   srv.URL + "/img/wreck.jpg",
								"thumbwidth": 1600,
								"mime":       "image/jpeg",
							}},
						},
					},
				},
			}
			_ = json.NewEncoder(w).Encode(resp)
		case "/img/as350.jpg":
			_, _ = w.Write(photo.Bytes())
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, fmt.Sprintf("search:\n  endpoint: %s/w/api.php\n", srv.URL))
	writeItems(t, dir, `
- id: h125
  query: Eurocopter AS350 Ecureuil helicopter
- id: ghost
  query: Nonexistent rotorcraft
`)

	out, err := execute(t, "--config", cfgPath, "fetch")
	require.NoError(t, err, "partial failure still exits cleanly")
	assert.Contains(t, out, "Result: 1/2 succeeded")
	assert.Contains(t, out, "Failed: ghost")

	saved, err := os.ReadFile(filepath.Join(dir, "photos", "h125.jpg"))
	require.NoError(t, err)
	assert.Equal(t, photo.Bytes(), saved)

	// A second run skips the existing photo without touching the network for it.
	out, err = execute(t, "--config", cfgPath, "fetch", "--only", "h125")
	require.NoError(t, err)
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "Result: 1/1 succeeded")
}

func TestFetchCommand_UnknownOnlyID(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	writeItems(t, dir, "- id: h125\n  query: x\n")

	_, err := execute(t, "--config", cfgPath, "fetch", "--only", "nope")
	assert.Error(t, err)
}

func TestGenerateCommand_MissingKeyStopsBeforeWork(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("HELI_GENERATE_GEMINI_API_KEY", "")

	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")
	writeItems(t, dir, "- id: h125\n  name: Airbus H125\n  type: civilian\n")

	out, err := execute(t, "--config", cfgPath, "generate")
	assert.ErrorIs(t, err, model.ErrMissingCredential)
	assert.NotContains(t, out, "Result:")
	assert.NoDirExists(t, filepath.Join(dir, "generated"))
}

func TestConvertCommand_EmptyDir(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")

	out, err := execute(t, "--config", cfgPath, "convert")
	require.NoError(t, err)
	assert.Contains(t, out, "No .jpx files in")
}

func TestHistoryCommand_LedgerDisabled(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, dir, "")

	out, err := execute(t, "--config", cfgPath, "history")
	require.NoError(t, err)
	assert.Contains(t, out, "Call ledger disabled")
}

func TestPrintHistory(t *testing.T) {
	repo := storage.NewMemoryCallRepository()
	ctx := context.Background()

	var buf bytes.Buffer
	require.NoError(t, printHistory(ctx, &buf, repo, 10))
	assert.Equal(t, "No calls recorded yet\n", buf.String())

	msg := strings.Repeat("x", 80)
	require.NoError(t, repo.Create(ctx, &model.ProviderCall{
		RunID: "0123456789abcdef", ItemID: "h125", Kind: model.CallGenerate,
		Provider: "gemini", Model: "imagen-4.0-generate-001", Success: true, Bytes: 2048,
		CreatedAt: time.Now(),
	}))
	require.NoError(t, repo.Create(ctx, &model.ProviderCall{
		RunID: "0123456789abcdef", ItemID: "nh90", Kind: model.CallGenerate,
		Provider: "gemini", Model: "imagen-4.0-generate-001", Error: &msg,
		CreatedAt: time.Now(),
	}))

	buf.Reset()
	require.NoError(t, printHistory(ctx, &buf, repo, 10))
	out := buf.String()
	assert.Contains(t, out, "PROVIDER")
	assert.Contains(t, out, "01234567 ")
	assert.NotContains(t, out, "0123456789")
	assert.Contains(t, out, strings.Repeat("x", 60)+"...")
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 3)
}

// ledgerJob writes a small file per item and records one provider call for it.
type ledgerJob struct {
	dir   string
	runID string
	calls storage.CallRepository
}

func (j *ledgerJob) Name() string { return "ledger" }

func (j *ledgerJob) OutputPath(item model.Item) string {
	return filepath.Join(j.dir, item.ID+".png")
}

func (j *ledgerJob) Run(ctx context.Context, item model.Item, dest string) (int64, error) {
	if err := j.calls.Create(ctx, &model.ProviderCall{
		RunID: j.runID, ItemID: item.ID, Kind: model.CallGenerate,
		Provider: "fake", Model: "fake-1", Success: true, CreatedAt: time.Now(),
	}); err != nil {
		return 0, err
	}
	return 3, os.WriteFile(dest, []byte("png"), 0o644)
}

func TestRunBatch_ReportsProviderCalls(t *testing.T) {
	ctx := context.Background()
	repo := storage.NewMemoryCallRepository()
	require.NoError(t, repo.Create(ctx, &model.ProviderCall{RunID: "earlier-run", ItemID: "old", CreatedAt: time.Now()}))

	job := &ledgerJob{dir: t.TempDir(), runID: "this-run", calls: repo}
	items := []model.Item{{ID: "h125"}, {ID: "nh90"}}

	var buf bytes.Buffer
	result, err := runBatch(ctx, job, items, config.BatchConfig{OutputDir: job.dir}, false, repo, "this-run", &buf, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, 2, result.Succeeded())
	assert.Contains(t, buf.String(), "Result: 2/2 succeeded")
	assert.Contains(t, buf.String(), "Provider calls this run: 2\n")
}

func TestRunBatch_NoProviderCallsNoLine(t *testing.T) {
	repo := storage.NewMemoryCallRepository()
	job := &ledgerJob{dir: t.TempDir(), runID: "this-run", calls: repo}

	var buf bytes.Buffer
	_, err := runBatch(context.Background(), job, nil, config.BatchConfig{OutputDir: job.dir}, false, repo, "other-run", &buf, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "Provider calls")
}

func TestBatchFlags_Apply(t *testing.T) {
	var flags batchFlags
	cmd := &cobra.Command{Use: "test"}
	flags.register(cmd)
	require.NoError(t, cmd.ParseFlags([]string{"--delay", "2s", "--only", "h125,nh90", "--force"}))

	base := config.BatchConfig{ItemsFile: "items.yaml", OutputDir: "out", Delay: time.Second, MinBytes: 100}
	got := flags.apply(cmd, base)

	assert.Equal(t, 2*time.Second, got.Delay)
	assert.Equal(t, "out", got.OutputDir, "unset flags keep config values")
	assert.Equal(t, int64(100), got.MinBytes)
	assert.Equal(t, []string{"h125", "nh90"}, flags.only)
	assert.True(t, flags.force)
}

func TestNewLogger(t *testing.T) {
	logger, err := newLogger(config.LogConfig{Level: "warn", Format: "json"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1), "debug is off at warn level")

	_, err = newLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}
