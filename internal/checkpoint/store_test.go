package checkpoint

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type entry struct {
	URL  string `json:"url"`
	Name string `json:"name"`
}

func byURL(e entry) string { return e.URL }

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "speakers.jsonl")

	s, err := Open(path, byURL)
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.False(t, s.AlreadySeen("https://example.com/a"))
	assert.DirExists(t, filepath.Dir(path))
	assert.NoFileExists(t, path)
}

func TestAppend_PersistsAndMarksSeen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speakers.jsonl")

	s, err := Open(path, byURL)
	require.NoError(t, err)
	require.NoError(t, s.Append(entry{URL: "https://example.com/a", Name: "A"}))
	require.NoError(t, s.Append(entry{URL: "https://example.com/b", Name: "B"}))

	assert.True(t, s.AlreadySeen("https://example.com/a"))
	assert.True(t, s.AlreadySeen("https://example.com/b"))
	assert.False(t, s.AlreadySeen("https://example.com/c"))

	reopened, err := Open(path, byURL)
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())
	assert.True(t, reopened.AlreadySeen("https://example.com/a"))
	assert.Equal(t, []entry{
		{URL: "https://example.com/a", Name: "A"},
		{URL: "https://example.com/b", Name: "B"},
	}, reopened.Records())
}

func TestLoad_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "speakers.jsonl")
	content := `{"url":"https://example.com/a","name":"A"}` + "\n" +
		"\n" +
		"not json\n" +
		`{"url":"https://example.com/b","name":"B"}` + "\n" +
		`{"url":"https://example.com/c","na`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	records, skipped, err := Load[entry](path)
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Equal(t, 2, skipped)

	s, err := Open(path, byURL)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Skipped())
	assert.False(t, s.AlreadySeen("https://example.com/c"))

	// The torn line stays in place; new lines start on a fresh line after it.
	require.NoError(t, s.Append(entry{URL: "https://example.com/d"}))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `{"url":"https://example.com/c","na`+"\n")

	records, skipped, err = Load[entry](path)
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, "https://example.com/d", records[2].URL)
}

func TestLoad_MissingFile(t *testing.T) {
	records, skipped, err := Load[entry](filepath.Join(t.TempDir(), "nope.jsonl"))
	require.NoError(t, err)
	assert.Nil(t, records)
	assert.Zero(t, skipped)
}

func TestAppend_EmptyKeyNotSeen(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "x.jsonl"), byURL)
	require.NoError(t, err)
	require.NoError(t, s.Append(entry{Name: "no url"}))
	assert.False(t, s.AlreadySeen(""))
	assert.Equal(t, 1, s.Len())
}

func TestAppend_ConcurrentWritesKeepLinesIntact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emails.jsonl")
	s, err := Open(path, byURL)
	require.NoError(t, err)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, s.Append(entry{URL: fmt.Sprintf("https://example.com/%d", i), Name: "x"}))
		}(i)
	}
	wg.Wait()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	lines := 0
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e entry
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		lines++
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, n, lines)
}

func TestError_Unwrap(t *testing.T) {
	cause := os.ErrPermission
	err := &Error{Path: "in/x.jsonl", Message: "failed to append", Cause: cause}
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, "checkpoint in/x.jsonl: failed to append: permission denied", err.Error())
}
