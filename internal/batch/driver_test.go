package batch

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/fleveque/heliassets/internal/model"
	"github.com/fleveque/heliassets/internal/storage"
)

// fakeJob writes a fixed payload, or fails for the IDs in failOn.
type fakeJob struct {
	dir    string
	data   []byte
	failOn map[string]error
	panics map[string]bool
	ran    []string
	onRun  func(id string)
}

func (j *fakeJob) Name() string { return "fake" }

func (j *fakeJob) OutputPath(item model.Item) string {
	return filepath.Join(j.dir, item.ID+".png")
}

func (j *fakeJob) Run(_ context.Context, item model.Item, dest string) (int64, error) {
	j.ran = append(j.ran, item.ID)
	if j.onRun != nil {
		j.onRun(item.ID)
	}
	if j.panics[item.ID] {
		panic("boom")
	}
	if err := j.failOn[item.ID]; err != nil {
		return 0, err
	}
	if err := storage.WriteAtomic(dest, j.data); err != nil {
		return 0, err
	}
	return int64(len(j.data)), nil
}

// recordingPacer counts waits instead of sleeping.
type recordingPacer struct {
	waits int
	err   error
}

func (p *recordingPacer) Wait(ctx context.Context) error {
	p.waits++
	if p.err != nil {
		return p.err
	}
	return ctx.Err()
}

func items(ids ...string) []model.Item {
	out := make([]model.Item, len(ids))
	for i, id := range ids {
		out[i] = model.Item{ID: id}
	}
	return out
}

func TestDriver_OneOutcomePerItem(t *testing.T) {
	job := &fakeJob{
		dir:    t.TempDir(),
		data:   []byte("image"),
		failOn: map[string]error{"b": errors.New("HTTP 500")},
	}
	pacer := &recordingPacer{}
	d := NewDriver(job, Options{Pacer: pacer}, zaptest.NewLogger(t))

	res := d.Run(context.Background(), items("a", "b", "c", "d"))

	require.Equal(t, 4, res.Total())
	assert.Equal(t, 3, res.Succeeded())
	assert.Equal(t, []string{"b"}, res.FailedIDs())
	assert.Equal(t, []string{"a", "b", "c", "d"}, job.ran, "failure on b does not stop c and d")
	assert.Equal(t, 3, pacer.waits, "N-1 waits for N items")

	for i, id := range []string{"a", "b", "c", "d"} {
		assert.Equal(t, id, res.Outcomes[i].ItemID, "outcomes keep input order")
	}
	assert.Equal(t, int64(5), res.Outcomes[0].Bytes)
	assert.Zero(t, res.Outcomes[1].Bytes)
	assert.Equal(t, int64(15), res.BytesWritten())
}

func TestDriver_SkipsExistingAboveThreshold(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "big.png"), make([]byte, 200), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "small.png"), make([]byte, 50), 0644))

	job := &fakeJob{dir: dir, data: make([]byte, 300)}
	pacer := &recordingPacer{}
	d := NewDriver(job, Options{MinBytes: 100, Pacer: pacer}, zaptest.NewLogger(t))

	res := d.Run(context.Background(), items("big", "small", "new"))

	assert.Equal(t, []string{"small", "new"}, job.ran, "job is not called for the skipped item")
	assert.Equal(t, model.StatusSkipped, res.Outcomes[0].Status)
	assert.Equal(t, int64(200), res.Outcomes[0].Bytes)
	assert.Equal(t, model.StatusSuccess, res.Outcomes[1].Status, "a file under the threshold is regenerated")
	assert.Equal(t, 3, res.Succeeded(), "skips count as successes")
	assert.Equal(t, 2, pacer.waits, "pacing applies after a skip too")
}

func TestDriver_ForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "h120.png"), make([]byte, 200), 0644))

	job := &fakeJob{dir: dir, data: []byte("fresh")}
	d := NewDriver(job, Options{MinBytes: 0, Force: true}, zaptest.NewLogger(t))

	res := d.Run(context.Background(), items("h120"))
	assert.Equal(t, model.StatusSuccess, res.Outcomes[0].Status)

	data, err := os.ReadFile(filepath.Join(dir, "h120.png"))
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestDriver_CancelledStillYieldsAllOutcomes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	job := &fakeJob{dir: t.TempDir(), data: []byte("x")}
	// Cancel while the second item is running.
	job.onRun = func(id string) {
		if id == "b" {
			cancel()
		}
	}

	d := NewDriver(job, Options{Pacer: &recordingPacer{}}, zaptest.NewLogger(t))
	res := d.Run(ctx, items("a", "b", "c", "d"))

	require.Equal(t, 4, res.Total())
	assert.Equal(t, []string{"a", "b"}, job.ran)
	assert.Equal(t, []string{"c", "d"}, res.FailedIDs())
	for _, o := range res.Outcomes[2:] {
		assert.True(t, errors.Is(o.Err, context.Canceled))
	}
}

func TestDriver_PacerErrorFailsItem(t *testing.T) {
	job := &fakeJob{dir: t.TempDir(), data: []byte("x")}
	d := NewDriver(job, Options{Pacer: &recordingPacer{err: errors.New("limiter broken")}}, zaptest.NewLogger(t))

	res := d.Run(context.Background(), items("a", "b"))
	assert.Equal(t, []string{"a"}, job.ran)
	assert.Equal(t, []string{"b"}, res.FailedIDs())
}

func TestDriver_RecoversPanics(t *testing.T) {
	job := &fakeJob{dir: t.TempDir(), data: []byte("x"), panics: map[string]bool{"a": true}}
	d := NewDriver(job, Options{}, zaptest.NewLogger(t))

	res := d.Run(context.Background(), items("a", "b"))
	assert.Equal(t, []string{"a"}, res.FailedIDs())
	assert.Contains(t, res.Outcomes[0].Err.Error(), "boom")
	assert.Equal(t, model.StatusSuccess, res.Outcomes[1].Status)
}

func TestDriver_EmptyInput(t *testing.T) {
	pacer := &recordingPacer{}
	d := NewDriver(&fakeJob{dir: t.TempDir()}, Options{Pacer: pacer}, zaptest.NewLogger(t))

	res := d.Run(context.Background(), nil)
	assert.Zero(t, res.Total())
	assert.Zero(t, pacer.waits)
}

func TestDriver_ProgressLines(t *testing.T) {
	var out bytes.Buffer
	job := &fakeJob{dir: t.TempDir(), data: []byte("x"), failOn: map[string]error{"k": errors.New("nope")}}
	ids := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k"}

	NewDriver(job, Options{Progress: &out}, zaptest.NewLogger(t)).Run(context.Background(), items(ids...))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, len(ids))
	assert.True(t, strings.HasPrefix(lines[0], "[01/11] a saved "))
	assert.Equal(t, "[11/11] k failed: nope", lines[10])
}

func TestResult_WriteSummary(t *testing.T) {
	res := &Result{Outcomes: []model.Outcome{
		{ItemID: "h120", Status: model.StatusSuccess},
		{ItemID: "h125", Status: model.StatusSkipped},
		{ItemID: "h215", Status: model.StatusFailure},
		{ItemID: "as532", Status: model.StatusFailure},
	}}

	var out bytes.Buffer
	require.NoError(t, res.WriteSummary(&out))
	assert.Equal(t, "Result: 2/4 succeeded\nFailed: h215, as532\n", out.String())

	out.Reset()
	clean := &Result{Outcomes: []model.Outcome{{ItemID: "a", Status: model.StatusSuccess}}}
	require.NoError(t, clean.WriteSummary(&out))
	assert.Equal(t, "Result: 1/1 succeeded\n", out.String())
}

func TestRatePacer(t *testing.T) {
	assert.IsType(t, NopPacer{}, NewRatePacer(0))

	p := NewRatePacer(20 * time.Millisecond)
	start := time.Now()
	require.NoError(t, p.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond, "the first wait is spaced from construction")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, NewRatePacer(time.Hour).Wait(ctx))
	assert.Error(t, NopPacer{}.Wait(ctx))
}
