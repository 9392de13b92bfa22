package bgzf

import (
	"bytes"
	"errors"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/flate"

	"github.com/kgl-go/kglflow/pkg/logging"
)

// compressedBlock is one BGZF member read from disk, tagged with a
// monotonically-increasing id so the reassembler can detect skips.
type compressedBlock struct {
	id      uint64
	payload []byte // raw DEFLATE stream between header and trailer
	trailer trailer
}

// decompressedBlock is the product of inflating one compressedBlock.
type decompressedBlock struct {
	id     uint64
	data   []byte
	failed bool
}

// readBlocks reads one BGZF member at a time from r, until the EOF member
// is consumed or a framing/read error occurs. eofOK is true only when the
// stream ended on an EOF member, recognised as a member whose trailer
// carries zero CRC32 and zero ISIZE; its header is checked by readHeader,
// but its bytes are not compared one by one against eofMarker.
func readBlocks(r io.Reader, log logging.Sink, emit func(compressedBlock) bool) (eofOK bool, err error) {
	var id uint64
	for {
		h, herr := readHeader(r)
		if herr != nil {
			if errors.Is(herr, io.EOF) || errors.Is(herr, io.ErrUnexpectedEOF) {
				log.Log(logging.WarnLevel, "bgzf.reader", "truncated stream: missing EOF member", nil)
				return false, nil
			}
			return false, herr
		}

		total := h.totalSize()
		remaining := total - fixedHeaderLen - extraLen - trailerLen
		if remaining < 0 {
			return false, fmt.Errorf("%w: BSIZE too small for header+trailer", ErrFraming)
		}

		payload := make([]byte, remaining)
		if _, err := io.ReadFull(r, payload); err != nil {
			log.Log(logging.WarnLevel, "bgzf.reader", "short read on block payload", map[string]any{"block_id": id + 1})
			return false, nil
		}

		tr, terr := readTrailer(r)
		if terr != nil {
			return false, terr
		}

		// A member with isize==0 is the EOF marker: real data blocks always
		// carry isize in [1, 65536], so zero is unambiguous.
		if tr.isize == 0 && tr.crc32 == 0 {
			return true, nil
		}

		if verr := tr.validate(); verr != nil {
			log.Log(logging.ErrorLevel, "bgzf.reader", "BSIZE exceeds 64 KiB maximum or trailer malformed", map[string]any{"block_id": id + 1, "error": verr.Error()})
			return false, verr
		}

		id++
		if !emit(compressedBlock{id: id, payload: payload, trailer: tr}) {
			return false, nil
		}
	}
}

// inflate decompresses one block's raw DEFLATE payload. Any return other
// than a clean end-of-stream is treated as a block failure, per the
// resolved open question on inflate short-output handling.
func inflate(payload []byte, expectedSize uint32) ([]byte, error) {
	fr := flate.NewReader(bytes.NewReader(payload))
	defer fr.Close()

	out := make([]byte, 0, expectedSize)
	buf := make([]byte, 32*1024)
	for {
		n, err := fr.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("bgzf: inflate: %w", err)
		}
	}
	return out, nil
}

// checkCRC reports whether data's CRC32 (IEEE, the gzip polynomial)
// matches the trailer's recorded value.
func checkCRC(data []byte, want uint32) bool {
	return crc32.ChecksumIEEE(data) == want
}
