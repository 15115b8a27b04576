package trace

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/cockroachdb/errors"

	"sortlist/infra/sequence"
)

const (
	headerSize = 1 + 8 + 4
	crcSize    = 4

	defaultSegmentSize = 4 << 20
)

type Config struct {
	Dir string
	// SegmentSize is the rotation threshold in bytes.
	SegmentSize int64
	// SyncEvery fsyncs after this many appends; 0 syncs only on Close.
	SyncEvery int
}

// Writer appends records and assigns their sequence numbers. It is
// safe for concurrent use.
type Writer struct {
	mu       sync.Mutex
	dir      string
	segSize  int64
	every    int
	pending  int
	current  *segment
	segIndex int
	seq      *sequence.Sequencer
}

// Open continues the newest segment in cfg.Dir, resuming sequence
// numbers after the highest one on disk.
func Open(cfg Config) (*Writer, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "trace: create %s", cfg.Dir)
	}
	if cfg.SegmentSize <= 0 {
		cfg.SegmentSize = defaultSegmentSize
	}

	files, err := listSegments(cfg.Dir)
	if err != nil {
		return nil, err
	}

	var (
		index   int
		lastSeq uint64
	)
	if len(files) > 0 {
		last := files[len(files)-1]
		if index, err = segmentIndex(last); err != nil {
			return nil, errors.Wrapf(err, "trace: parse %s", last)
		}
		// the newest segment may be empty right after a rotation
		for i := len(files) - 1; i >= 0 && lastSeq == 0; i-- {
			if lastSeq, err = maxSeqInSegment(files[i]); err != nil {
				return nil, err
			}
		}
	}

	seg, err := openSegment(cfg.Dir, index)
	if err != nil {
		return nil, err
	}

	return &Writer{
		dir:      cfg.Dir,
		segSize:  cfg.SegmentSize,
		every:    cfg.SyncEvery,
		current:  seg,
		segIndex: index,
		seq:      sequence.New(lastSeq),
	}, nil
}

// Append stamps r with the next sequence number and writes it.
func (w *Writer) Append(r *Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	r.Seq = w.seq.Next()
	if err := w.current.append(encodeFrame(r)); err != nil {
		return errors.Wrapf(err, "trace: append seq %d", r.Seq)
	}

	if w.every > 0 {
		w.pending++
		if w.pending >= w.every {
			w.pending = 0
			if err := w.current.sync(); err != nil {
				return err
			}
		}
	}

	if w.current.offset >= w.segSize {
		return w.rotate()
	}
	return nil
}

// LastSeq returns the sequence number of the last appended record.
func (w *Writer) LastSeq() uint64 {
	return w.seq.Current()
}

func (w *Writer) rotate() error {
	if err := w.current.sync(); err != nil {
		return err
	}
	_ = w.current.close()
	w.segIndex++

	seg, err := openSegment(w.dir, w.segIndex)
	if err != nil {
		return err
	}
	w.current = seg
	return nil
}

// TruncateBefore removes whole segments whose records are all <= seq.
// The active segment is never removed.
func (w *Writer) TruncateBefore(seq uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	files, err := listSegments(w.dir)
	if err != nil {
		return err
	}
	active := segmentPath(w.dir, w.segIndex)
	for _, path := range files {
		if path == active {
			continue
		}
		maxSeq, err := maxSeqInSegment(path)
		if err != nil {
			continue
		}
		if maxSeq <= seq {
			if err := os.Remove(path); err != nil {
				return err
			}
		}
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.current.sync(); err != nil {
		_ = w.current.close()
		return err
	}
	return w.current.close()
}

func encodeFrame(r *Record) []byte {
	payload := encodePayload(r)
	n := len(payload)

	buf := make([]byte, headerSize+n+crcSize)
	buf[0] = byte(r.Op)
	binary.BigEndian.PutUint64(buf[1:9], r.Seq)
	binary.BigEndian.PutUint32(buf[9:13], uint32(n))
	copy(buf[headerSize:], payload)

	binary.BigEndian.PutUint32(buf[headerSize+n:], checksum(buf[:headerSize+n]))
	return buf
}
