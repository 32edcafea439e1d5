package state

import (
	"log/slog"
	"sync"
)

// DefaultHistoryLimit bounds the in-memory applied-action log.
const DefaultHistoryLimit = 1000

// Applied is one action applied by a Store.
type Applied struct {
	Seq    int64  `json:"seq"`
	Action Action `json:"-"`
	Kind   Kind   `json:"kind"`
}

// Change is delivered to subscribers after each applied action.
type Change struct {
	Seq    int64
	Action Action
	State  State
}

// Recorder receives every applied action with the hash of the state it
// produced. The journal implements it.
type Recorder interface {
	Record(seq int64, a Action, stateHash string) error
}

// Store owns the session state. All writes go through Dispatch, which
// applies actions under one lock so the reducer sees a total order.
//
// Thread-safety: all methods are safe for concurrent use.
type Store struct {
	mu        sync.Mutex
	state     State
	clock     SeqSource
	recorder  Recorder
	logger    *slog.Logger
	history   []Applied
	maxHist   int
	subs      map[int]chan Change
	nextSubID int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock sets the sequence source. Default: NewClock().
func WithClock(c SeqSource) StoreOption {
	return func(s *Store) {
		s.clock = c
	}
}

// WithRecorder attaches a recorder. Recorder errors are logged and never
// fail a dispatch.
func WithRecorder(r Recorder) StoreOption {
	return func(s *Store) {
		s.recorder = r
	}
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// WithHistoryLimit bounds History. Zero disables it.
func WithHistoryLimit(n int) StoreOption {
	return func(s *Store) {
		s.maxHist = n
	}
}

// WithInitialState starts the store from st instead of Initial().
func WithInitialState(st State) StoreOption {
	return func(s *Store) {
		s.state = st.Clone()
	}
}

// NewStore creates a store holding Initial().
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		state:   Initial(),
		clock:   NewClock(),
		logger:  slog.Default(),
		maxHist: DefaultHistoryLimit,
		subs:    make(map[int]chan Change),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Dispatch applies actions in order as one contiguous unit. It returns the
// state after the last action.
func (s *Store) Dispatch(actions ...Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range actions {
		if a == nil {
			continue
		}
		s.apply(a)
	}
	return s.state.Clone()
}

// Update runs fn under the store lock and dispatches whatever it returns.
// fn sees the current state and may decide to dispatch nothing; used for
// check-then-act sequences such as discarding stale responses.
func (s *Store) Update(fn func(current State) []Action) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range fn(s.state) {
		if a == nil {
			continue
		}
		s.apply(a)
	}
	return s.state.Clone()
}

// apply must be called with mu held.
func (s *Store) apply(a Action) {
	seq := s.clock.Next()
	s.state = Reduce(s.state, a)

	if s.maxHist > 0 {
		s.history = append(s.history, Applied{Seq: seq, Action: a, Kind: a.Kind()})
		if over := len(s.history) - s.maxHist; over > 0 {
			s.history = append([]Applied(nil), s.history[over:]...)
		}
	}

	if s.recorder != nil {
		hash, err := s.state.Hash()
		if err == nil {
			err = s.recorder.Record(seq, a, hash)
		}
		if err != nil {
			s.logger.Warn("failed to record action",
				"seq", seq,
				"kind", a.Kind(),
				"error", err)
		}
	}

	if len(s.subs) > 0 {
		change := Change{Seq: seq, Action: a, State: s.state.Clone()}
		for id, ch := range s.subs {
			select {
			case ch <- change:
			default:
				s.logger.Debug("subscriber lagging, dropped change",
					"subscriber", id,
					"seq", seq)
			}
		}
	}

	s.logger.Debug("action applied", "seq", seq, "kind", a.Kind())
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Seq returns the sequence number of the last applied action.
func (s *Store) Seq() int64 {
	return s.clock.Current()
}

// History returns the most recent applied actions, oldest first.
func (s *Store) History() []Applied {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Applied(nil), s.history...)
}

// Subscribe returns a channel of changes and a cancel func. Delivery never
// blocks the store: a subscriber whose buffer is full misses changes.
func (s *Store) Subscribe(buffer int) (<-chan Change, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
