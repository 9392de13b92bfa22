package streamio

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestOpenPlainTextNoTrailingNewline(t *testing.T) {
	p := writeFile(t, "plain.txt", []byte("a\nbb\nccc"))
	s, err := Open(p, 1, nil)
	require.NoError(t, err)
	defer s.Close()

	var got []Record
	for {
		r, ok := s.ReadLine()
		if !ok {
			break
		}
		got = append(got, r)
	}
	require.Equal(t, []Record{{1, "a"}, {2, "bb"}, {3, "ccc"}}, got)
	require.True(t, s.Good())
}

func TestOpenPlainTextWithTrailingNewline(t *testing.T) {
	p := writeFile(t, "plain2.txt", []byte("a\nbb\nccc\n"))
	s, err := Open(p, 1, nil)
	require.NoError(t, err)
	defer s.Close()

	var got []Record
	for {
		r, ok := s.ReadLine()
		if !ok {
			break
		}
		got = append(got, r)
	}
	require.Len(t, got, 3)
}

func TestOpenPlainGzipFile(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte("x\ny\nz\n"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	p := writeFile(t, "plain.gz", buf.Bytes())
	s, err := Open(p, 1, nil)
	require.NoError(t, err)
	defer s.Close()

	var got []Record
	for {
		r, ok := s.ReadLine()
		if !ok {
			break
		}
		got = append(got, r)
	}
	require.Equal(t, []Record{{1, "x"}, {2, "y"}, {3, "z"}}, got)
}

func TestSniffBGZFRejectsPlainGzip(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, _ = gw.Write([]byte("hi\n"))
	require.NoError(t, gw.Close())

	p := writeFile(t, "x.gz", buf.Bytes())
	isBGZF, err := sniffBGZF(p)
	require.NoError(t, err)
	require.False(t, isBGZF)
}

func TestLineBufferDrainsThroughTidalQueue(t *testing.T) {
	p := writeFile(t, "buf.txt", []byte("1\n2\n3\n4\n5\n"))
	s, err := Open(p, 1, nil)
	require.NoError(t, err)

	lb := NewLineBuffer(s, 2, 1, nil)
	defer lb.Close()

	var got []Record
	for {
		r, ok := lb.ReadLine()
		if !ok {
			break
		}
		got = append(got, r)
	}
	require.Len(t, got, 5)
	require.True(t, lb.Good())
}

func TestLineBufferCloseBeforeDrainDoesNotDeadlock(t *testing.T) {
	lines := bytes.Repeat([]byte("x\n"), 100000)
	p := writeFile(t, "big.txt", lines)
	s, err := Open(p, 1, nil)
	require.NoError(t, err)

	lb := NewLineBuffer(s, 4, 1, nil)
	_, ok := lb.ReadLine()
	require.True(t, ok)
	require.NoError(t, lb.Close())
}
