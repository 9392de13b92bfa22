package bgzf

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/flate"
	"github.com/stretchr/testify/require"
)

// buildBGZF packages each of blocks as one BGZF member and appends the EOF
// marker, mirroring exactly the framing §4.8 describes.
func buildBGZF(t *testing.T, blocks [][]byte) []byte {
	t.Helper()
	var out bytes.Buffer
	for _, data := range blocks {
		var payload bytes.Buffer
		fw, err := flate.NewWriter(&payload, flate.DefaultCompression)
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
		require.NoError(t, fw.Close())

		total := fixedHeaderLen + extraLen + payload.Len() + trailerLen
		bsize := uint16(total - 1)

		out.Write([]byte{idByte1, idByte2, cmDeflate, flgExtra})
		var mtime [4]byte
		out.Write(mtime[:])
		out.WriteByte(0) // XFL
		out.WriteByte(0xff)
		var xlen [2]byte
		binary.LittleEndian.PutUint16(xlen[:], extraLen)
		out.Write(xlen[:])

		out.WriteByte('B')
		out.WriteByte('C')
		var slen [2]byte
		binary.LittleEndian.PutUint16(slen[:], bcSLEN)
		out.Write(slen[:])
		var bsizeBuf [2]byte
		binary.LittleEndian.PutUint16(bsizeBuf[:], bsize)
		out.Write(bsizeBuf[:])

		out.Write(payload.Bytes())

		var crcBuf [4]byte
		binary.LittleEndian.PutUint32(crcBuf[:], crc32.ChecksumIEEE(data))
		out.Write(crcBuf[:])
		var isizeBuf [4]byte
		binary.LittleEndian.PutUint32(isizeBuf[:], uint32(len(data)))
		out.Write(isizeBuf[:])
	}
	out.Write(eofMarker)
	return out.Bytes()
}

func writeTempFile(t *testing.T, data []byte) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "test.bgz")
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

func TestEngineRoundTripAcrossThreadCounts(t *testing.T) {
	blocks := [][]byte{
		[]byte("line\n" + repeatLine("line\n", 100)),
		[]byte(repeatLine("line\n", 150)),
	}
	raw := buildBGZF(t, blocks)
	path := writeTempFile(t, raw)

	for _, threads := range []int{1, 4, 16} {
		e := New(path, threads, 64, 16, nil)
		go func() { require.NoError(t, e.Run()) }()

		var got []Line
		for {
			line, ok := e.ReadLine()
			if !ok {
				break
			}
			got = append(got, line)
		}
		require.Len(t, got, 251, "threads=%d", threads)
		for i, l := range got {
			require.Equal(t, uint64(i+1), l.Number)
			require.Equal(t, "line", l.Content)
		}
		require.True(t, e.Good())
	}
}

func repeatLine(s string, n int) string {
	var b bytes.Buffer
	for i := 0; i < n; i++ {
		b.WriteString(s)
	}
	return b.String()
}

func TestEngineHandlesLineSplitAcrossBlockBoundary(t *testing.T) {
	// "hello world\n" split so the boundary falls mid-token.
	blocks := [][]byte{
		[]byte("hel"),
		[]byte("lo world\nsecond\n"),
	}
	raw := buildBGZF(t, blocks)
	path := writeTempFile(t, raw)

	e := New(path, 2, 8, 2, nil)
	go func() { require.NoError(t, e.Run()) }()

	var got []Line
	for {
		line, ok := e.ReadLine()
		if !ok {
			break
		}
		got = append(got, line)
	}
	require.Equal(t, []Line{{1, "hello world"}, {2, "second"}}, got)
}

func TestVerifyAcceptsWellFormedFile(t *testing.T) {
	raw := buildBGZF(t, [][]byte{[]byte("abc\n")})
	path := writeTempFile(t, raw)

	ok, report := Verify(path)
	require.True(t, ok)
	require.True(t, report.OK)
}

func TestVerifyRejectsMissingEOFMember(t *testing.T) {
	raw := buildBGZF(t, [][]byte{[]byte("abc\n")})
	truncated := raw[:len(raw)-len(eofMarker)]
	path := writeTempFile(t, truncated)

	ok, report := Verify(path)
	require.False(t, ok)
	require.False(t, report.OK)
	require.Equal(t, len(eofMarker), report.TrailingBytesWanted)
}

func TestVerifyRejectsFlippedConstantByte(t *testing.T) {
	raw := buildBGZF(t, [][]byte{[]byte("abc\n")})
	raw[0] = 0x00 // corrupt the first gzip ID byte
	path := writeTempFile(t, raw)

	ok, _ := Verify(path)
	require.False(t, ok)
}
