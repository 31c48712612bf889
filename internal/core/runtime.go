package core

import (
	"time"

	"github.com/Marc-We/Meldeliste/internal/domain"
)

type ToiletStatus string

const (
	ToiletPending ToiletStatus = "pending"
	ToiletAllowed ToiletStatus = "allowed"
	ToiletBack    ToiletStatus = "back"
)

type toiletState struct {
	Status ToiletStatus
	Since  time.Time
}

// away reports whether the user is still inside the toilet workflow and
// must keep their old-room membership across a join or leave.
func (t *toiletState) away() bool {
	return t != nil && (t.Status == ToiletPending || t.Status == ToiletAllowed)
}

// sessionCounters mirror a subset of the stats record for the lifetime
// of the room runtime. They are not cleared when the room closes.
type sessionCounters struct {
	Signals       int
	Calls         int
	ToiletSeconds int
}

type question struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

type thoughtState struct {
	Active  bool
	Entries []string
}

// RoomRuntime is the ephemeral half of a room. It is never persisted
// and is fully initialized up front, so handlers never probe for nil
// containers.
type RoomRuntime struct {
	Members   map[domain.UserID]struct{}
	Ready     map[domain.UserID]struct{}
	Important map[domain.UserID]struct{}
	Toilet    map[domain.UserID]*toiletState
	Poll      *domain.Poll
	Thoughts  thoughtState
	Questions []question
	Counters  map[domain.UserID]*sessionCounters
}

func newRoomRuntime() *RoomRuntime {
	return &RoomRuntime{
		Members:   make(map[domain.UserID]struct{}),
		Ready:     make(map[domain.UserID]struct{}),
		Important: make(map[domain.UserID]struct{}),
		Toilet:    make(map[domain.UserID]*toiletState),
		Counters:  make(map[domain.UserID]*sessionCounters),
	}
}

func (rt *RoomRuntime) isMember(id domain.UserID) bool {
	_, ok := rt.Members[id]
	return ok
}

func (rt *RoomRuntime) counters(id domain.UserID) *sessionCounters {
	c, ok := rt.Counters[id]
	if !ok {
		c = &sessionCounters{}
		rt.Counters[id] = c
	}
	return c
}

// roundToiletSeconds rounds an away duration to the nearest 10-second
// step, ties rounding up. Negative durations count as zero.
func roundToiletSeconds(d time.Duration) int {
	ms := d.Milliseconds()
	if ms < 0 {
		ms = 0
	}
	return int((ms+5000)/10000) * 10
}
