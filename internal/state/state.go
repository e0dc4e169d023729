package state

import "sync"

// UnknownSalePercent marks that no discount has been observed since startup
const UnknownSalePercent = -1

// TrackedState is everything the notifier remembers between cycles.
// It lives for the process lifetime only.
type TrackedState struct {
	LastSalePercent   int
	LastKnownPostText *string
	TicksElapsed      int
}

type StateManager interface {
	Snapshot() TrackedState
	GetLastSalePercent() int
	SetLastSalePercent(percent int)
	GetLastKnownPostText() (string, bool)
	SetLastKnownPostText(text string)
	GetTicksElapsed() int
	IncrementTicks() int
}

// memoryStateManager guards individual fields only. Two overlapping cycles
// can still interleave their reads and writes.
type memoryStateManager struct {
	mutex sync.Mutex
	state TrackedState
}

func NewMemoryStateManager() StateManager {
	return &memoryStateManager{
		state: TrackedState{
			LastSalePercent: UnknownSalePercent,
		},
	}
}

func (s *memoryStateManager) Snapshot() TrackedState {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	snapshot := s.state
	if s.state.LastKnownPostText != nil {
		text := *s.state.LastKnownPostText
		snapshot.LastKnownPostText = &text
	}
	return snapshot
}

func (s *memoryStateManager) GetLastSalePercent() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state.LastSalePercent
}

func (s *memoryStateManager) SetLastSalePercent(percent int) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.state.LastSalePercent = percent
}

func (s *memoryStateManager) GetLastKnownPostText() (string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state.LastKnownPostText == nil {
		return "", false
	}
	return *s.state.LastKnownPostText, true
}

func (s *memoryStateManager) SetLastKnownPostText(text string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.state.LastKnownPostText = &text
}

func (s *memoryStateManager) GetTicksElapsed() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state.TicksElapsed
}

// IncrementTicks bumps the tick counter and returns the new value
func (s *memoryStateManager) IncrementTicks() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.state.TicksElapsed++
	return s.state.TicksElapsed
}
