package transfer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docpipe/docpipe/internal/store"
)

// testConfig keeps backoff waits negligible so retry tests run fast.
func testConfig() Config {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
	return Config{Metadata: p, Stream: Policy{MaxAttempts: 2, BaseDelay: time.Millisecond}, Chunk: p}
}

// fakeSource scripts metadata and open behavior per call.
type fakeSource struct {
	metadataCalls int
	metadataErrs  []error // consumed one per call; nil entry means success
	object        store.Object

	openCalls int
	openErrs  []error
	content   string
	reader    io.ReadCloser // overrides content when set
}

func (f *fakeSource) Metadata(_ context.Context, id string) (store.Object, error) {
	f.metadataCalls++
	if f.metadataCalls <= len(f.metadataErrs) {
		if err := f.metadataErrs[f.metadataCalls-1]; err != nil {
			return store.Object{}, err
		}
	}
	obj := f.object
	if obj.ID == "" {
		obj = store.Object{ID: id, Name: id + ".txt", Kind: store.KindFile, ContentType: "text/plain"}
	}
	return obj, nil
}

func (f *fakeSource) Open(_ context.Context, id, exportType string) (io.ReadCloser, error) {
	f.openCalls++
	if f.openCalls <= len(f.openErrs) {
		if err := f.openErrs[f.openCalls-1]; err != nil {
			return nil, err
		}
	}
	if f.reader != nil {
		return f.reader, nil
	}
	return io.NopCloser(strings.NewReader(f.content)), nil
}

func transientErr(id string) error {
	return store.NewError(store.KindTransient, "test", id, fmt.Errorf("503"))
}

func TestResolvePassThrough(t *testing.T) {
	src := &fakeSource{object: store.Object{ID: "x", Name: "plain.txt", ContentType: "text/plain"}}
	engine := NewEngine(src, testConfig())

	res, err := engine.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, res.ExportType)
	assert.Equal(t, "plain.txt", res.FinalName)
}

func TestResolveMapsVirtualDocuments(t *testing.T) {
	tests := []struct {
		contentType string
		wantExport  string
		wantName    string
	}{
		{"application/vnd.google-apps.document", "application/pdf", "report.pdf"},
		{"application/vnd.google-apps.spreadsheet",
			"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "report.xlsx"},
		{"application/vnd.google-apps.presentation", "application/pdf", "report.pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.contentType, func(t *testing.T) {
			src := &fakeSource{object: store.Object{ID: "d", Name: "report", ContentType: tt.contentType}}
			res, err := NewEngine(src, testConfig()).Resolve(context.Background(), "d")
			require.NoError(t, err)
			assert.Equal(t, tt.wantExport, res.ExportType)
			assert.Equal(t, tt.wantName, res.FinalName)
		})
	}
}

func TestResolveRetriesTransientMetadataFailures(t *testing.T) {
	src := &fakeSource{metadataErrs: []error{transientErr("x"), transientErr("x"), nil}}
	res, err := NewEngine(src, testConfig()).Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, 3, src.metadataCalls)
	assert.Equal(t, "x.txt", res.FinalName)
}

func TestResolveExhaustsRetryBudget(t *testing.T) {
	src := &fakeSource{metadataErrs: []error{transientErr("x"), transientErr("x"), transientErr("x")}}
	_, err := NewEngine(src, testConfig()).Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, store.KindTransientExhausted, store.KindOf(err))
	assert.Equal(t, 3, src.metadataCalls)
}

func TestResolvePermanentFailureConsumesOneAttempt(t *testing.T) {
	notFound := store.NewError(store.KindNotFound, "metadata", "x", fmt.Errorf("404"))
	src := &fakeSource{metadataErrs: []error{notFound, notFound, notFound}}

	_, err := NewEngine(src, testConfig()).Resolve(context.Background(), "x")
	require.Error(t, err)
	assert.Equal(t, store.KindNotFound, store.KindOf(err))
	assert.Equal(t, 1, src.metadataCalls)
}

func TestTransferStagesBytes(t *testing.T) {
	destDir := filepath.Join(t.TempDir(), "nested", "staging")
	src := &fakeSource{content: "hello world"}
	engine := NewEngine(src, testConfig())

	res, err := engine.Resolve(context.Background(), "obj-1")
	require.NoError(t, err)

	path, err := engine.Transfer(context.Background(), res, destDir)
	require.NoError(t, err)

	// Destination dir created on demand, filename prefixed with the id.
	assert.Equal(t, "obj-1_obj-1.txt", filepath.Base(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	// No .part leftovers.
	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestTransferRetriesStreamOpen(t *testing.T) {
	src := &fakeSource{content: "ok", openErrs: []error{transientErr("x"), nil}}
	engine := NewEngine(src, testConfig())

	res, err := engine.Resolve(context.Background(), "x")
	require.NoError(t, err)

	_, err = engine.Transfer(context.Background(), res, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 2, src.openCalls)
}

func TestTransferOpenExhaustion(t *testing.T) {
	src := &fakeSource{openErrs: []error{transientErr("x"), transientErr("x")}}
	engine := NewEngine(src, testConfig())

	res, err := engine.Resolve(context.Background(), "x")
	require.NoError(t, err)

	_, err = engine.Transfer(context.Background(), res, t.TempDir())
	require.Error(t, err)
	assert.Equal(t, store.KindTransientExhausted, store.KindOf(err))
	assert.Equal(t, 2, src.openCalls)
}

// flakyReader fails some reads transiently before recovering.
type flakyReader struct {
	chunks   []string
	failures int
	pos      int
}

func (r *flakyReader) Read(p []byte) (int, error) {
	if r.failures > 0 {
		r.failures--
		return 0, store.NewError(store.KindTransient, "read", "flaky", fmt.Errorf("connection reset"))
	}
	if r.pos >= len(r.chunks) {
		return 0, io.EOF
	}
	n := copy(p, r.chunks[r.pos])
	r.pos++
	return n, nil
}

func (r *flakyReader) Close() error { return nil }

func TestTransferRetriesChunkReads(t *testing.T) {
	src := &fakeSource{reader: &flakyReader{chunks: []string{"part one ", "part two"}, failures: 2}}
	engine := NewEngine(src, testConfig())

	res, err := engine.Resolve(context.Background(), "flaky")
	require.NoError(t, err)

	path, err := engine.Transfer(context.Background(), res, t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "part one part two", string(data))
	// Chunk retries stay inside the logical attempt: no stream reopen.
	assert.Equal(t, 1, src.openCalls)
}

func TestTransferChunkExhaustionRemovesPartialFile(t *testing.T) {
	cfg := testConfig()
	cfg.Chunk.MaxAttempts = 2
	src := &fakeSource{reader: &flakyReader{chunks: []string{"data"}, failures: 10}}
	engine := NewEngine(src, cfg)

	res, err := engine.Resolve(context.Background(), "flaky")
	require.NoError(t, err)

	destDir := t.TempDir()
	_, err = engine.Transfer(context.Background(), res, destDir)
	require.Error(t, err)
	assert.Equal(t, store.KindTransientExhausted, store.KindOf(err))

	entries, err := os.ReadDir(destDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
