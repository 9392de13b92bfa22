package bgzf

import (
	"bytes"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/kgl-go/kglflow/pkg/config"
	"github.com/kgl-go/kglflow/pkg/logging"
	"github.com/kgl-go/kglflow/pkg/queue"
	"github.com/kgl-go/kglflow/pkg/workflow"
)

// outItem is what the engine's line-output queue actually carries: either
// a Line or the terminal EOF marker.
type outItem struct {
	line Line
	eof  bool
}

// Stats mirrors the counters pool.Pool exposes via Completed(), scoped to
// one decompression run.
type Stats struct {
	BlocksRead         uint64
	BytesDecompressed  uint64
	CRCFailures        uint64
	ReassemblyWarnings uint64
}

// Engine runs the reader thread, the N-way decompression workflow, and the
// reassembly thread described by spec.md §4.8, exposing decoded lines
// through a bounded tidal output queue.
type Engine struct {
	path    string
	threads int
	runID   string
	log     logging.Sink

	output *queue.TidalQueue[outItem]

	blocksRead         atomic.Uint64
	bytesDecompressed  atomic.Uint64
	crcFailures        atomic.Uint64
	reassemblyWarnings atomic.Uint64

	good atomic.Bool
}

// countingSink wraps a logging.Sink to tally WARN-level reassembly
// messages into Stats without the reassembler needing to know about
// Engine's bookkeeping.
type countingSink struct {
	logging.Sink
	warnings *atomic.Uint64
}

func (c countingSink) Log(level logging.Level, component, msg string, fields map[string]any) {
	if level == logging.WarnLevel && component == "bgzf.reassembly" {
		c.warnings.Add(1)
	}
	c.Sink.Log(level, component, msg, fields)
}

// New constructs an Engine for path. threads <= 0 selects
// max(runtime.NumCPU()-1, 1) via pkg/config's convention; callers
// typically pass cfg.DecompressionThreads directly.
func New(path string, threads int, outHighTide, outLowTide int, log logging.Sink) *Engine {
	if threads < 1 {
		threads = config.Config{}.Defaulted().DecompressionThreads
	}
	if log == nil {
		log = logging.Noop()
	}
	e := &Engine{
		path:    path,
		threads: threads,
		runID:   uuid.NewString(),
		log:     log,
		output:  queue.NewTidal[outItem](outHighTide, outLowTide),
	}
	e.good.Store(true)
	return e
}

// NewEngine constructs an Engine from cfg instead of bare positional
// tuning args, matching the teacher's constructor-takes-Config
// convention throughout pkg/common/workers. A zero-value cfg is
// defaulted before use, so NewEngine(path, config.Config{}, log) is a
// sane all-defaults construction.
func NewEngine(path string, cfg config.Config, log logging.Sink) *Engine {
	cfg = cfg.Defaulted()
	return New(path, cfg.DecompressionThreads, cfg.TidalHighTide, cfg.TidalLowTide, log)
}

// Run starts every thread and blocks until the reader, every decompressor,
// and the reassembler have finished. Lines go into a bounded tidal output
// queue whose Push blocks while the queue is in EBB, so Run also waits
// for a consumer to drain that queue via ReadLine.
func (e *Engine) Run() error {
	f, err := os.Open(e.path)
	if err != nil {
		return fmt.Errorf("bgzf: open %s: %w", e.path, err)
	}
	defer f.Close()

	e.log.Log(logging.InfoLevel, "bgzf.engine", "run started", map[string]any{"run_id": e.runID, "path": e.path, "threads": e.threads})
	defer e.log.Log(logging.InfoLevel, "bgzf.engine", "run finished", map[string]any{"run_id": e.runID})

	reassembleLog := countingSink{Sink: e.log, warnings: &e.reassemblyWarnings}
	reassembler := newReassembler(reassembleLog, func(l Line) {
		e.output.Push(outItem{line: l})
	})

	decompOutput := newDecompQueue()
	pipeline := workflow.NewPipeline[compressedBlock, decompressedBlock](
		e.threads*4, e.threads*2, decompOutput,
		func(b compressedBlock) (decompressedBlock, error) {
			data, ierr := inflate(b.payload, b.trailer.isize)
			if ierr != nil {
				e.log.Log(logging.WarnLevel, "bgzf.decompress", "inflate failed", map[string]any{"block_id": b.id, "error": ierr.Error()})
				return decompressedBlock{id: b.id, failed: true}, nil
			}
			if !checkCRC(data, b.trailer.crc32) {
				e.crcFailures.Add(1)
				e.log.Log(logging.WarnLevel, "bgzf.decompress", "CRC32 mismatch", map[string]any{"block_id": b.id})
			}
			e.bytesDecompressed.Add(uint64(len(data)))
			return decompressedBlock{id: b.id, data: data}, nil
		},
		e.log,
	)
	pipeline.Activate(e.threads)

	// Reassembly thread: pulls decompression handles in block-id (==
	// submission) order and feeds the reassembler, concurrently with the
	// reader thread below still reading and submitting further blocks.
	var reassemblyWG sync.WaitGroup
	reassemblyWG.Add(1)
	go func() {
		defer reassemblyWG.Done()
		for {
			h, ok := decompOutput.WaitAndPop()
			if !ok {
				return
			}
			db, err := h.Wait()
			if err != nil {
				e.good.Store(false)
				continue
			}
			if db.failed {
				e.good.Store(false)
				continue
			}
			reassembler.feed(db.id, db.data)
		}
	}()

	eofOK, rerr := readBlocks(f, e.log, func(cb compressedBlock) bool {
		e.blocksRead.Add(1)
		pipeline.Submit(cb)
		return true
	})
	pipeline.Close() // also closes decompOutput once every worker has exited
	reassemblyWG.Wait()

	if rerr != nil {
		e.good.Store(false)
	}
	if !eofOK {
		e.good.Store(false)
	}

	reassembler.finish()
	e.output.Push(outItem{eof: true})

	return nil
}

// decompQueue is a blocking FIFO of decompression handles. Handles are
// pushed in submission (== block id) order by the reader thread, and
// popped in the same order by the reassembly thread, which then blocks on
// each handle's own completion — giving the reassembler strict block-id
// ordering while decompression itself proceeds out of order across
// pipeline workers.
type decompQueue struct {
	mu     sync.Mutex
	cond   *sync.Cond
	items  []*workflow.Handle[decompressedBlock]
	closed bool
}

func newDecompQueue() *decompQueue {
	q := &decompQueue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

func (q *decompQueue) Push(item *workflow.Handle[decompressedBlock]) {
	q.mu.Lock()
	q.items = append(q.items, item)
	q.mu.Unlock()
	q.cond.Signal()
}

func (q *decompQueue) WaitAndPop() (*workflow.Handle[decompressedBlock], bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.closed {
		q.cond.Wait()
	}
	if len(q.items) == 0 {
		return nil, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

func (q *decompQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// ReadLine dequeues the next decoded line. The second return value is
// false once the EOF sentinel has been observed.
func (e *Engine) ReadLine() (Line, bool) {
	item, ok := e.output.WaitAndPop()
	if !ok || item.eof {
		return Line{}, false
	}
	return item.line, true
}

// Good reports whether the stream ended cleanly rather than via an error
// that truncated it early.
func (e *Engine) Good() bool { return e.good.Load() }

// RunID is a unique identifier for this Engine's run, for correlating its
// log lines across the reader, decompression, and reassembly threads.
func (e *Engine) RunID() string { return e.runID }

// Stats snapshots the run's counters.
func (e *Engine) Stats() Stats {
	return Stats{
		BlocksRead:         e.blocksRead.Load(),
		BytesDecompressed:  e.bytesDecompressed.Load(),
		CRCFailures:        e.crcFailures.Load(),
		ReassemblyWarnings: e.reassemblyWarnings.Load(),
	}
}

// VerifyReport is the structured result of Verify, supplementing the
// boolean with the specifics needed to diagnose a mismatch.
type VerifyReport struct {
	OK                  bool
	BlocksChecked       uint64
	FirstBadOffset      int64
	ExpectedField       string
	ActualField         string
	TrailingBytesFound  int
	TrailingBytesWanted int
}

// Verify walks path without decompressing, checking every structural
// field and the terminal EOF member, per spec.md §4.8's verify mode.
func Verify(path string) (bool, VerifyReport) {
	f, err := os.Open(path)
	if err != nil {
		return false, VerifyReport{OK: false, ExpectedField: "openable file", ActualField: err.Error()}
	}
	defer f.Close()

	var offset int64
	var blocks uint64
	for {
		h, herr := readHeader(f)
		if herr != nil {
			report := VerifyReport{OK: false, BlocksChecked: blocks, FirstBadOffset: offset}
			if bytes.Contains([]byte(herr.Error()), []byte("EOF")) {
				report.ExpectedField = "28-byte EOF member"
				report.ActualField = "stream ended early"
				report.TrailingBytesWanted = len(eofMarker)
			} else {
				report.ExpectedField = "valid BGZF header"
				report.ActualField = herr.Error()
			}
			return false, report
		}

		total := h.totalSize()
		remaining := total - fixedHeaderLen - extraLen - trailerLen
		if remaining < 0 {
			return false, VerifyReport{OK: false, BlocksChecked: blocks, FirstBadOffset: offset, ExpectedField: "BSIZE >= header+trailer", ActualField: fmt.Sprintf("BSIZE=%d", h.bsize)}
		}

		payload := make([]byte, remaining)
		if _, err := readFullAt(f, payload); err != nil {
			return false, VerifyReport{OK: false, BlocksChecked: blocks, FirstBadOffset: offset, ExpectedField: fmt.Sprintf("%d payload bytes", remaining), ActualField: err.Error()}
		}

		tr, terr := readTrailer(f)
		if terr != nil {
			return false, VerifyReport{OK: false, BlocksChecked: blocks, FirstBadOffset: offset, ExpectedField: "8-byte trailer", ActualField: terr.Error()}
		}

		if tr.isize == 0 && tr.crc32 == 0 {
			return true, VerifyReport{OK: true, BlocksChecked: blocks}
		}

		if int(tr.isize) == 0 || int(tr.isize) > maxUncompressed {
			return false, VerifyReport{OK: false, BlocksChecked: blocks, FirstBadOffset: offset, ExpectedField: "0 < isize <= 65536", ActualField: fmt.Sprintf("isize=%d", tr.isize)}
		}

		blocks++
		offset += int64(total)
	}
}

func readFullAt(f *os.File, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := f.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
