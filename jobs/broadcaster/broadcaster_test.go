package broadcaster

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
	"google.golang.org/protobuf/types/known/structpb"

	"sortlist/infra/kafka"
	"sortlist/infra/results"
)

var _ Publisher = (*kafka.Producer)(nil)

func newStore(t *testing.T, runs ...uint64) *results.Store {
	t.Helper()
	s, err := results.OpenWith("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })

	for _, id := range runs {
		r, _ := structpb.NewStruct(map[string]any{"run": float64(id), "ok": true})
		if err := s.Put(id, r); err != nil {
			t.Fatal(err)
		}
	}
	return s
}

func stateOf(t *testing.T, s *results.Store, id uint64) results.Entry {
	t.Helper()
	e, err := s.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

func TestBroadcaster_PublishesAndAcks(t *testing.T) {
	store := newStore(t, 1, 2)
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if len(val) == 0 {
			return errors.New("empty report")
		}
		return nil
	})
	producer.ExpectSendMessageAndSucceed()

	b := New(store, NewSaramaWith(producer, "runs"), time.Second)
	acked, err := b.RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if acked != 2 {
		t.Fatalf("expected 2 acked, got %d", acked)
	}
	for _, id := range []uint64{1, 2} {
		if st := stateOf(t, store, id).State; st != results.StateAcked {
			t.Errorf("run %d: expected ACKED, got %v", id, st)
		}
	}
	_ = b.Close()
}

func TestBroadcaster_FailureIsRetried(t *testing.T) {
	store := newStore(t, 1)
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	producer.ExpectSendMessageAndSucceed()

	b := New(store, NewSaramaWith(producer, "runs"), time.Second)

	acked, err := b.RunOnce(context.Background())
	if err != nil || acked != 0 {
		t.Fatalf("first pass: acked=%d err=%v", acked, err)
	}
	e := stateOf(t, store, 1)
	if e.State != results.StateFailed || e.Retries != 1 {
		t.Fatalf("expected FAILED with 1 retry, got %v/%d", e.State, e.Retries)
	}

	acked, err = b.RunOnce(context.Background())
	if err != nil || acked != 1 {
		t.Fatalf("second pass: acked=%d err=%v", acked, err)
	}
	if st := stateOf(t, store, 1).State; st != results.StateAcked {
		t.Errorf("expected ACKED after retry, got %v", st)
	}
	_ = b.Close()
}

// --- Edge Cases ---

type countingPublisher struct{ n int }

func (c *countingPublisher) Publish(context.Context, []byte, []byte) error {
	c.n++
	return errors.New("unreachable")
}
func (c *countingPublisher) Close() error { return nil }

func TestBroadcaster_GivesUpAfterMaxRetries(t *testing.T) {
	store := newStore(t, 1)
	pub := &countingPublisher{}
	b := New(store, pub, time.Second)

	for i := 0; i < 10; i++ {
		if _, err := b.RunOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
	}
	if pub.n != int(b.maxRetries) {
		t.Errorf("expected %d attempts, got %d", b.maxRetries, pub.n)
	}
}

func TestBroadcaster_RunStopsOnCancel(t *testing.T) {
	store := newStore(t)
	b := New(store, &countingPublisher{}, time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
