package state

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/remsync/internal/model"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recorded struct {
	seq  int64
	kind Kind
	hash string
}

type memRecorder struct {
	mu   sync.Mutex
	rows []recorded
	err  error
}

func (r *memRecorder) Record(seq int64, a Action, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, recorded{seq: seq, kind: a.Kind(), hash: hash})
	return nil
}

func TestStoreDispatchAppliesInOrder(t *testing.T) {
	s := NewStore(WithLogger(quietLogger()))

	got := s.Dispatch(
		AddReminder{Reminder: rem("a", "A")},
		AddReminder{Reminder: rem("b", "B")},
		SetStats{Stats: model.Stats{Active: 2}},
	)

	assert.Equal(t, []model.ID{"b", "a"}, ids(got.Reminders))
	assert.Equal(t, 2, got.Stats.Active)
	assert.Equal(t, int64(3), s.Seq())

	hist := s.History()
	require.Len(t, hist, 3)
	assert.Equal(t, int64(1), hist[0].Seq)
	assert.Equal(t, KindSetStats, hist[2].Kind)
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	s := NewStore(WithLogger(quietLogger()))
	s.Dispatch(AddReminder{Reminder: rem("a", "A")})

	snap := s.Snapshot()
	snap.Reminders[0].Title = "mutated"

	assert.Equal(t, "A", s.Snapshot().Reminders[0].Title)
}

func TestStoreRecorder(t *testing.T) {
	rec := &memRecorder{}
	s := NewStore(WithLogger(quietLogger()), WithRecorder(rec))

	final := s.Dispatch(SetLoading{Loading: true}, InitComplete{})

	require.Len(t, rec.rows, 2)
	assert.Equal(t, int64(1), rec.rows[0].seq)
	assert.Equal(t, KindInitComplete, rec.rows[1].kind)
	want, err := final.Hash()
	require.NoError(t, err)
	assert.Equal(t, want, rec.rows[1].hash)
}

func TestStoreRecorderErrorDoesNotFailDispatch(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	s := NewStore(WithLogger(quietLogger()), WithRecorder(rec))

	got := s.Dispatch(AddReminder{Reminder: rem("a", "A")})
	assert.Len(t, got.Reminders, 1)
}

func TestStoreHistoryLimit(t *testing.T) {
	s := NewStore(WithLogger(quietLogger()), WithHistoryLimit(2))
	s.Dispatch(SetLoading{Loading: true}, SetLoading{Loading: false}, InitComplete{})

	hist := s.History()
	require.Len(t, hist, 2)
	assert.Equal(t, int64(2), hist[0].Seq)
	assert.Equal(t, int64(3), hist[1].Seq)
}

func TestStoreUpdateCanSkip(t *testing.T) {
	s := NewStore(WithLogger(quietLogger()))
	s.Update(func(cur State) []Action {
		if cur.Loading {
			return nil
		}
		return []Action{SetError{Message: "unexpected"}}
	})
	assert.Equal(t, int64(0), s.Seq())
	assert.Empty(t, s.Snapshot().Error)
}

func TestStoreSubscribe(t *testing.T) {
	s := NewStore(WithLogger(quietLogger()))
	ch, cancel := s.Subscribe(4)

	s.Dispatch(AddReminder{Reminder: rem("a", "A")}, InitComplete{})

	first := <-ch
	assert.Equal(t, int64(1), first.Seq)
	assert.Equal(t, KindAddReminder, first.Action.Kind())
	assert.True(t, first.State.Loading)

	second := <-ch
	assert.False(t, second.State.Loading)

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)

	// Dispatch after cancel must not panic on the closed channel.
	s.Dispatch(SetLoading{Loading: true})
}

func TestStoreSubscribeDropsWhenFull(t *testing.T) {
	s := NewStore(WithLogger(quietLogger()))
	ch, cancel := s.Subscribe(1)
	defer cancel()

	s.Dispatch(SetLoading{Loading: true}, SetLoading{Loading: false}, InitComplete{})

	got := <-ch
	assert.Equal(t, int64(1), got.Seq)
	select {
	case extra := <-ch:
		t.Fatalf("expected dropped changes, got seq %d", extra.Seq)
	default:
	}
}

func TestStoreConcurrentDispatch(t *testing.T) {
	s := NewStore(WithLogger(quietLogger()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("r%d", i)
			s.Dispatch(AddReminder{Reminder: rem(id, id)})
			_ = s.Snapshot()
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Len(t, snap.Reminders, 50)
	assert.Equal(t, int64(50), s.Seq())
}

func TestStoreWithInitialState(t *testing.T) {
	start := ReduceAll(Initial(), InitComplete{}, AddReminder{Reminder: rem("a", "A")})
	s := NewStore(WithLogger(quietLogger()), WithInitialState(start), WithClock(NewClockAt(10)))

	s.Dispatch(RemoveReminder{ID: "a"})
	assert.Empty(t, s.Snapshot().Reminders)
	assert.Equal(t, int64(11), s.Seq())
}
