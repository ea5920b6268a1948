package jsonl

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"scoreloop/internal/domain"
	"scoreloop/internal/logging"
	"scoreloop/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), WithLogger(logging.Nop()))
}

func writeRaw(t *testing.T, s *Store, stream, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(s.Path(stream), []byte(content), 0o644))
}

func TestAppend_RoundTrip(t *testing.T) {
	s := newTestStore(t)

	res := s.Append("events.jsonl", map[string]any{"trade_id": "T1", "pnl_usd": 1.5})
	require.True(t, res.OK)
	require.Greater(t, res.Bytes, 0)
	res = s.AppendRaw("events.jsonl", []byte(`{"trade_id":"T2"}`+"\n"))
	require.True(t, res.OK)

	recs, stats, err := s.ReadAll("events.jsonl")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, "T1", recs[0].Str("trade_id"))
	require.Equal(t, 1, recs[0].LineNo)
	require.Equal(t, `{"trade_id":"T2"}`, string(recs[1].Raw))
	require.Equal(t, 2, recs[1].LineNo)
	require.Equal(t, storage.ScanStats{Lines: 2, Parsed: 2}, stats)
}

func TestAppendRaw_TerminatesTornTail(t *testing.T) {
	s := newTestStore(t)
	writeRaw(t, s, "audit.jsonl", "{\"n\":1}\n{\"n\":2,\"par")

	res := s.Append("audit.jsonl", map[string]any{"n": 3})
	require.True(t, res.OK)
	res = s.Append("audit.jsonl", map[string]any{"n": 4})
	require.True(t, res.OK)

	recs, stats, err := s.ReadAll("audit.jsonl")
	require.NoError(t, err)
	require.Len(t, recs, 3)
	require.Equal(t, `{"n":3}`, string(recs[1].Raw))
	require.Equal(t, 3, recs[1].LineNo)
	require.Equal(t, `{"n":4}`, string(recs[2].Raw))
	require.Equal(t, storage.ScanStats{Lines: 4, Parsed: 3, Malformed: 1}, stats)

	b, err := os.ReadFile(s.Path("audit.jsonl"))
	require.NoError(t, err)
	require.Equal(t, "{\"n\":1}\n{\"n\":2,\"par\n{\"n\":3}\n{\"n\":4}\n", string(b))
}

func TestAppendRaw_CompleteUnterminatedTailKept(t *testing.T) {
	s := newTestStore(t)
	writeRaw(t, s, "events.jsonl", `{"n":1}`)

	require.True(t, s.AppendRaw("events.jsonl", []byte(`{"n":2}`)).OK)

	recs, stats, err := s.ReadAll("events.jsonl")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Zero(t, stats.Skipped())
}

func TestAppendRaw_RejectsNonObject(t *testing.T) {
	s := newTestStore(t)

	for _, line := range []string{`[1,2]`, `{"a":1}` + "\n" + `{"b":2}`, `{"a":`, ``} {
		res := s.AppendRaw("x.jsonl", []byte(line))
		require.False(t, res.OK, line)
		require.Equal(t, domain.KindMalformedRecord, res.Kind)
		require.ErrorIs(t, res.Err, storage.ErrInvalidInput)
	}
	require.False(t, s.Exists("x.jsonl"))
}

func TestAppend_UnwritableDirectoryReturnsIOFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// A regular file where a directory is expected cannot be created into.
	s := NewStore(blocker, WithLogger(logging.Nop()))
	res := s.Append("events.jsonl", map[string]any{"a": 1})
	require.False(t, res.OK)
	require.Equal(t, domain.KindIOFailure, res.Kind)
	require.Error(t, res.Err)
}

func TestAppend_ConcurrentWritersKeepLinesWhole(t *testing.T) {
	s := newTestStore(t)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Append("c.jsonl", map[string]any{"w": w, "i": i, "pad": strings.Repeat("x", 200)})
			}
		}(w)
	}
	wg.Wait()

	recs, stats, err := s.ReadAll("c.jsonl")
	require.NoError(t, err)
	require.Len(t, recs, 400)
	require.Zero(t, stats.Malformed)
	require.Zero(t, stats.Truncated)
}

func TestScan_SkipsMalformedAndTruncated(t *testing.T) {
	s := newTestStore(t)
	writeRaw(t, s, "mixed.jsonl", strings.Join([]string{
		`{"n":1}`,
		`not json`,
		``,
		`{"n":2}`,
		`{"n":3,"partial":`,
	}, "\n"))

	recs, stats, err := s.ReadAll("mixed.jsonl")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Equal(t, 1, recs[0].LineNo)
	require.Equal(t, 4, recs[1].LineNo)
	require.Equal(t, storage.ScanStats{Lines: 5, Parsed: 2, Malformed: 1, Truncated: 1, Blank: 1}, stats)
	require.Equal(t, 2, stats.Skipped())
}

func TestScan_CompleteFinalLineWithoutNewline(t *testing.T) {
	s := newTestStore(t)
	writeRaw(t, s, "tail.jsonl", "{\"n\":1}\n{\"n\":2}")

	recs, stats, err := s.ReadAll("tail.jsonl")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	require.Zero(t, stats.Truncated)
}

func TestScan_MissingStreamIsEmpty(t *testing.T) {
	s := newTestStore(t)

	recs, stats, err := s.ReadAll("nope.jsonl")
	require.NoError(t, err)
	require.Empty(t, recs)
	require.Zero(t, stats.Lines)
}

func TestScan_Restartable(t *testing.T) {
	s := newTestStore(t)
	writeRaw(t, s, "r.jsonl", "{\"n\":1}\n{\"n\":2}\n")

	sc := s.Scan("r.jsonl")
	require.True(t, sc.Next())
	require.NoError(t, sc.Close())
	require.False(t, sc.Next())

	sc2 := s.Scan("r.jsonl")
	defer sc2.Close()
	var n int
	for sc2.Next() {
		n++
	}
	require.Equal(t, 2, n)
}

func TestReadTail(t *testing.T) {
	s := newTestStore(t)
	var b strings.Builder
	for i := 0; i < 100; i++ {
		b.WriteString(`{"i":`)
		b.WriteString(strings.Repeat("0", 3))
		b.WriteString(`}` + "\n")
	}
	writeRaw(t, s, "t.jsonl", `{"first":true}`+"\n"+b.String())

	t.Run("partial leading line discarded", func(t *testing.T) {
		// Each line is 10 bytes; 25 bytes cuts one line in half.
		recs, stats, err := s.ReadTail("t.jsonl", 25, 0)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		require.Zero(t, stats.Malformed)
	})

	t.Run("max lines keeps the newest", func(t *testing.T) {
		recs, _, err := s.ReadTail("t.jsonl", 0, 3)
		require.NoError(t, err)
		require.Len(t, recs, 3)
		require.Equal(t, `{"i":000}`, string(recs[2].Raw))
	})

	t.Run("whole file", func(t *testing.T) {
		recs, _, err := s.ReadTail("t.jsonl", 1<<20, 0)
		require.NoError(t, err)
		require.Len(t, recs, 101)
		require.True(t, recs[0].Get("first").Bool())
	})

	t.Run("window on line boundary keeps first line", func(t *testing.T) {
		recs, _, err := s.ReadTail("t.jsonl", 20, 0)
		require.NoError(t, err)
		require.Len(t, recs, 2)
	})
}

func TestWriteStream_ByteIdenticalRewrite(t *testing.T) {
	s := newTestStore(t)
	lines := [][]byte{[]byte(`{"a":1}`), []byte(`{"b":2}` + "\n")}

	require.True(t, s.WriteStream("out.jsonl", lines).OK)
	h1, err := s.Hash("out.jsonl")
	require.NoError(t, err)

	require.True(t, s.WriteStream("out.jsonl", lines).OK)
	h2, err := s.Hash("out.jsonl")
	require.NoError(t, err)

	require.Equal(t, h1, h2)
	require.True(t, strings.HasPrefix(h1, "sha256:"))

	data, err := os.ReadFile(s.Path("out.jsonl"))
	require.NoError(t, err)
	require.Equal(t, "{\"a\":1}\n{\"b\":2}\n", string(data))

	entries, err := os.ReadDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")
}

func TestHash_MissingStream(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Hash("missing.jsonl")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestWriteFileExclusive_NeverOverwrites(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Dir(), "versions", "sb_1.json")

	require.NoError(t, s.WriteFileExclusive(path, []byte("one")))
	err := s.WriteFileExclusive(path, []byte("two"))
	require.ErrorIs(t, err, storage.ErrDuplicateKey)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "one", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestWriteFileAtomic_Replaces(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Dir(), "current.json")

	require.NoError(t, s.WriteFileAtomic(path, []byte(`{"v":1}`)))
	require.NoError(t, s.WriteFileAtomic(path, []byte(`{"v":2}`)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, `{"v":2}`, string(data))
}
