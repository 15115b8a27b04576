package trace

import (
	"bufio"
	"encoding/binary"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

var (
	ErrChecksum      = errors.New("trace: checksum mismatch")
	ErrNonMonotonic  = errors.New("trace: non-monotonic sequence")
	errTruncatedTail = errors.New("trace: truncated frame")
)

type ReplayHandler func(*Record) error

// Replay feeds every record in dir to fn in sequence order and returns
// the last sequence number seen. A torn frame at the end of a segment
// ends that segment.
func Replay(dir string, fn ReplayHandler) (lastSeq uint64, err error) {
	files, err := listSegments(dir)
	if err != nil {
		return 0, err
	}

	for _, path := range files {
		lastSeq, err = replaySegment(path, lastSeq, fn)
		if err != nil {
			return lastSeq, err
		}
	}
	return lastSeq, nil
}

// ReadAll collects every record in dir.
func ReadAll(dir string) ([]Record, error) {
	var out []Record
	_, err := Replay(dir, func(r *Record) error {
		out = append(out, *r)
		return nil
	})
	return out, err
}

func replaySegment(path string, lastSeq uint64, fn ReplayHandler) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return lastSeq, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		rec, err := readFrame(r)
		if err != nil {
			if err == io.EOF || errors.Is(err, errTruncatedTail) {
				return lastSeq, nil
			}
			return lastSeq, errors.Wrapf(err, "trace: %s", path)
		}

		if rec.Seq <= lastSeq {
			return lastSeq, errors.Wrapf(ErrNonMonotonic, "seq %d after %d", rec.Seq, lastSeq)
		}
		lastSeq = rec.Seq

		if err := fn(rec); err != nil {
			return lastSeq, err
		}
	}
}

func readFrame(r io.Reader) (*Record, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, errTruncatedTail
		}
		return nil, err
	}

	n := binary.BigEndian.Uint32(header[9:13])
	body := make([]byte, int(n)+crcSize)
	if _, err := io.ReadFull(r, body); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, errTruncatedTail
		}
		return nil, err
	}

	payload := body[:n]
	sum := binary.BigEndian.Uint32(body[n:])
	if checksum(append(header, payload...)) != sum {
		return nil, ErrChecksum
	}

	rec := &Record{
		Op:  Op(header[0]),
		Seq: binary.BigEndian.Uint64(header[1:9]),
	}
	if err := decodePayload(payload, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// maxSeqInSegment returns the highest sequence number in a segment.
func maxSeqInSegment(path string) (uint64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	var max uint64
	r := bufio.NewReader(f)
	header := make([]byte, headerSize)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return max, nil
			}
			return max, err
		}

		if seq := binary.BigEndian.Uint64(header[1:9]); seq > max {
			max = seq
		}

		skip := int(binary.BigEndian.Uint32(header[9:13])) + crcSize
		if _, err := r.Discard(skip); err != nil {
			if err == io.EOF {
				return max, nil
			}
			return max, err
		}
	}
}
