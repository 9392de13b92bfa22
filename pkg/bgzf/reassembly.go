package bgzf

import (
	"bytes"

	"github.com/kgl-go/kglflow/pkg/logging"
)

// Line is one 1-based output record, matching the (line_number, line_text)
// pairs the stream façade exposes.
type Line struct {
	Number  uint64
	Content string
}

// reassembler turns blocks into lines, maintaining the carry buffer for
// lines split across block boundaries. Blocks reach it in block-id order
// because the engine's reassembly thread waits on Workflow-Pipeline
// handles in submission order.
type reassembler struct {
	log        logging.Sink
	nextWantID uint64
	carry      []byte
	lineNo     uint64
	emit       func(Line)
}

func newReassembler(log logging.Sink, emit func(Line)) *reassembler {
	return &reassembler{log: log, nextWantID: 1, emit: emit}
}

// feed processes one decompressed block's bytes, in block-id order. The
// caller (the engine's reassembly thread) is responsible for handing
// blocks to feed strictly in id order; feed only logs a warning on a
// detected skip, it does not try to reorder.
func (a *reassembler) feed(id uint64, data []byte) {
	if id != a.nextWantID {
		a.log.Log(logging.WarnLevel, "bgzf.reassembly", "block id skip", map[string]any{"expected": a.nextWantID, "got": id})
	}
	a.nextWantID = id + 1

	tokens := bytes.Split(data, []byte{'\n'})
	n := len(tokens)
	if n == 0 {
		return
	}

	first := tokens[0]
	switch {
	case len(a.carry) > 0 && len(first) > 0:
		joined := append(append([]byte{}, a.carry...), first...)
		if n >= 2 {
			a.emitLine(joined)
			a.carry = nil
		} else {
			a.carry = joined
		}
	case len(a.carry) > 0:
		// carry exists but first token is empty: the previous block ended
		// mid-line and this block starts with the '\n' that completes it.
		a.emitLine(a.carry)
		a.carry = nil
		if n >= 2 {
			// first (empty) token contributes nothing further; continue below.
		}
	default:
		if n >= 2 {
			a.emitLine(first)
		} else {
			a.carry = append([]byte{}, first...)
		}
	}

	for i := 1; i < n-1; i++ {
		a.emitLine(tokens[i])
	}

	if n >= 2 {
		last := tokens[n-1]
		a.carry = append([]byte{}, last...)
	}
}

func (a *reassembler) emitLine(b []byte) {
	a.lineNo++
	a.emit(Line{Number: a.lineNo, Content: string(b)})
}

// finish flushes any trailing partial line once the stop token has been
// observed. An empty carry (stream ended cleanly on '\n', or the stream
// was empty) emits nothing further.
func (a *reassembler) finish() {
	if len(a.carry) > 0 {
		a.emitLine(a.carry)
		a.carry = nil
	}
}
