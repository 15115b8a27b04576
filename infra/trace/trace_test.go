package trace

import (
	"os"
	"testing"

	"github.com/cockroachdb/errors"
)

func writeRecords(t *testing.T, cfg Config, recs []Record) {
	t.Helper()
	w, err := Open(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	for i := range recs {
		if err := w.Append(&recs[i]); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestTrace_AppendAndReplay(t *testing.T) {
	dir := t.TempDir()
	recs := []Record{
		{Op: OpInsert, Value: 5},
		{Op: OpInsert, Value: -3},
		{Op: OpCount, Value: -3, Result: 1},
		{Op: OpRemove, Value: 9, Result: 0},
		{Op: OpRemove, Value: 5, Result: 1},
	}
	writeRecords(t, Config{Dir: dir}, recs)

	got, err := ReadAll(dir)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got) != len(recs) {
		t.Fatalf("expected %d records, got %d", len(recs), len(got))
	}
	for i := range recs {
		want := recs[i]
		want.Seq = uint64(i + 1)
		if got[i] != want {
			t.Errorf("record %d: expected %+v, got %+v", i, want, got[i])
		}
	}
}

func TestTrace_RotationAndResume(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{Dir: dir, SegmentSize: 64, SyncEvery: 3}

	first := make([]Record, 20)
	for i := range first {
		first[i] = Record{Op: OpInsert, Value: int64(i)}
	}
	writeRecords(t, cfg, first)

	files, _ := listSegments(dir)
	if len(files) < 2 {
		t.Fatalf("expected rotation, found %d segments", len(files))
	}

	w, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if w.LastSeq() != 20 {
		t.Fatalf("expected resume at 20, got %d", w.LastSeq())
	}
	r := Record{Op: OpCount, Value: 1, Result: 1}
	if err := w.Append(&r); err != nil {
		t.Fatal(err)
	}
	_ = w.Close()
	if r.Seq != 21 {
		t.Errorf("expected seq 21, got %d", r.Seq)
	}

	last, err := Replay(dir, func(*Record) error { return nil })
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if last != 21 {
		t.Errorf("expected last seq 21, got %d", last)
	}
}

func TestTrace_TruncateBefore(t *testing.T) {
	dir := t.TempDir()
	w, err := Open(Config{Dir: dir, SegmentSize: 32})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		if err := w.Append(&Record{Op: OpInsert, Value: int64(i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.TruncateBefore(5); err != nil {
		t.Fatalf("truncate: %v", err)
	}
	_ = w.Close()

	got, err := ReadAll(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || got[0].Seq <= 1 {
		t.Fatalf("expected early segments removed, got %d records", len(got))
	}
	if got[len(got)-1].Seq != 10 {
		t.Errorf("expected tail seq 10, got %d", got[len(got)-1].Seq)
	}
}

// --- Edge Cases ---

func TestTrace_ChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, Config{Dir: dir}, []Record{{Op: OpInsert, Value: 42}})

	path := segmentPath(dir, 0)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[headerSize] ^= 0xff
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadAll(dir); !errors.Is(err, ErrChecksum) {
		t.Fatalf("expected ErrChecksum, got %v", err)
	}
}

func TestTrace_TornTailIgnored(t *testing.T) {
	dir := t.TempDir()
	writeRecords(t, Config{Dir: dir}, []Record{
		{Op: OpInsert, Value: 1},
		{Op: OpInsert, Value: 2},
	})

	path := segmentPath(dir, 0)
	st, _ := os.Stat(path)
	if err := os.Truncate(path, st.Size()-2); err != nil {
		t.Fatal(err)
	}

	got, err := ReadAll(dir)
	if err != nil {
		t.Fatalf("expected torn tail to be ignored, got %v", err)
	}
	if len(got) != 1 || got[0].Value != 1 {
		t.Errorf("expected only the first record, got %+v", got)
	}
}

func TestTrace_EmptyDir(t *testing.T) {
	last, err := Replay(t.TempDir(), func(*Record) error {
		t.Fatal("no records expected")
		return nil
	})
	if err != nil || last != 0 {
		t.Errorf("expected empty replay, got last=%d err=%v", last, err)
	}
}

func TestOp_String(t *testing.T) {
	if OpInsert.String() != "insert" || OpRemove.String() != "remove" || OpCount.String() != "count" {
		t.Error("unexpected op names")
	}
	if Op(0).String() != "unknown" {
		t.Error("expected unknown for zero op")
	}
}
