package results

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// -------------------- State --------------------

type State uint8

const (
	StateNew State = iota
	StateSent
	StateAcked
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "NEW"
	case StateSent:
		return "SENT"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

var (
	ErrNotFound = errors.New("results: run not found")
	errShort    = errors.New("results: value too short")
)

// -------------------- Entry --------------------

type Entry struct {
	RunID       uint64
	State       State
	Retries     uint32
	LastAttempt int64
	Report      *structpb.Struct
}

const entryHeader = 1 + 4 + 8

func encodeEntry(e Entry) ([]byte, error) {
	report, err := proto.Marshal(e.Report)
	if err != nil {
		return nil, errors.Wrap(err, "results: marshal report")
	}
	buf := make([]byte, entryHeader, entryHeader+len(report))
	buf[0] = byte(e.State)
	binary.BigEndian.PutUint32(buf[1:5], e.Retries)
	binary.BigEndian.PutUint64(buf[5:13], uint64(e.LastAttempt))
	return append(buf, report...), nil
}

func decodeEntry(id uint64, b []byte) (Entry, error) {
	if len(b) < entryHeader {
		return Entry{}, errShort
	}
	report := &structpb.Struct{}
	if err := proto.Unmarshal(b[entryHeader:], report); err != nil {
		return Entry{}, errors.Wrapf(err, "results: run %d", id)
	}
	return Entry{
		RunID:       id,
		State:       State(b[0]),
		Retries:     binary.BigEndian.Uint32(b[1:5]),
		LastAttempt: int64(binary.BigEndian.Uint64(b[5:13])),
		Report:      report,
	}, nil
}

// -------------------- Store --------------------

type Store struct {
	db *pebble.DB
	// mu serializes read-modify-write state updates.
	mu sync.Mutex
}

func Open(dir string) (*Store, error) {
	return OpenWith(dir, &pebble.Options{})
}

// OpenWith opens the store with caller-supplied options, e.g. an
// in-memory filesystem in tests.
func OpenWith(dir string, opts *pebble.Options) (*Store, error) {
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrapf(err, "results: open %s", dir)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Put records a new report in StateNew.
func (s *Store) Put(runID uint64, report *structpb.Struct) error {
	val, err := encodeEntry(Entry{State: StateNew, Report: report})
	if err != nil {
		return err
	}
	return s.db.Set(keyFor(runID), val, pebble.Sync)
}

// UpdateState moves a run to state and stamps the attempt time.
func (s *Store) UpdateState(runID uint64, state State, retries uint32) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.Get(runID)
	if err != nil {
		return err
	}
	e.State = state
	e.Retries = retries
	e.LastAttempt = time.Now().UnixNano()

	val, err := encodeEntry(e)
	if err != nil {
		return err
	}
	return s.db.Set(keyFor(runID), val, pebble.Sync)
}

func (s *Store) Get(runID uint64) (Entry, error) {
	val, closer, err := s.db.Get(keyFor(runID))
	if errors.Is(err, pebble.ErrNotFound) {
		return Entry{}, errors.Wrapf(ErrNotFound, "run %d", runID)
	}
	if err != nil {
		return Entry{}, err
	}
	defer closer.Close()

	return decodeEntry(runID, val)
}

// Delete removes a run, typically once it is acknowledged.
func (s *Store) Delete(runID uint64) error {
	return s.db.Delete(keyFor(runID), pebble.Sync)
}

// NextRunID returns one past the highest stored run id.
func (s *Store) NextRunID() (uint64, error) {
	iter, err := s.newIter()
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	if !iter.Last() {
		return 1, iter.Error()
	}
	id, err := parseKey(iter.Key())
	if err != nil {
		return 0, err
	}
	return id + 1, nil
}

// -------------------- Scan --------------------

// ScanByState calls fn for every run in state, in run id order.
func (s *Store) ScanByState(state State, fn func(Entry) error) error {
	iter, err := s.newIter()
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		val := iter.Value()
		if len(val) == 0 || State(val[0]) != state {
			continue
		}

		id, err := parseKey(iter.Key())
		if err != nil {
			return err
		}
		e, err := decodeEntry(id, val)
		if err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (s *Store) newIter() (*pebble.Iterator, error) {
	return s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(keyPrefix),
		UpperBound: []byte(keyPrefix + "~"),
	})
}

// -------------------- Helpers --------------------

const keyPrefix = "run/"

func keyFor(runID uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", keyPrefix, runID))
}

func parseKey(b []byte) (uint64, error) {
	var id uint64
	_, err := fmt.Sscanf(string(bytes.TrimPrefix(b, []byte(keyPrefix))), "%d", &id)
	return id, err
}
