package core

import (
	"testing"
	"time"

	"github.com/Marc-We/Meldeliste/internal/domain"
)

func TestReadyThenWithdrawRestoresCounters(t *testing.T) {
	s := newTestManager()
	room, _, _ := makeRoom(t, s, "Math", "7a")
	stu, c, _ := joinStudent(t, s, room, "Meier")

	if s.Dispatch(c, Command{Kind: KindReady}) != Applied {
		t.Fatal("ready rejected")
	}
	rec := stu.StatsFor("Math")
	if rec.Signals != 1 || rec.Day(s.today()).Signals != 1 {
		t.Fatalf("signals after ready = %d/%d, want 1/1", rec.Signals, rec.Day(s.today()).Signals)
	}
	rt := s.runtimes[room.ID]
	if rt.counters(stu.ID).Signals != 1 {
		t.Fatalf("session signals = %d, want 1", rt.counters(stu.ID).Signals)
	}

	if s.Dispatch(c, Command{Kind: KindWithdraw}) != Applied {
		t.Fatal("withdraw rejected")
	}
	if rec.Signals != 0 || rec.Day(s.today()).Signals != 0 || rt.counters(stu.ID).Signals != 0 {
		t.Fatalf("counters not restored: %d/%d/%d", rec.Signals, rec.Day(s.today()).Signals, rt.counters(stu.ID).Signals)
	}

	// A second withdraw clamps at zero instead of going negative.
	s.Dispatch(c, Command{Kind: KindWithdraw})
	if rec.Signals != 0 || rt.counters(stu.ID).Signals != 0 {
		t.Fatalf("counters went negative: %d/%d", rec.Signals, rt.counters(stu.ID).Signals)
	}
}

func TestReadyRejectedForStaffAndMismatchedClass(t *testing.T) {
	s := newTestManager()
	room, tc, _ := makeRoom(t, s, "Math", "7a")

	if s.Dispatch(tc, Command{Kind: KindReady, RoomID: room.ID}) != Rejected {
		t.Fatal("teacher ready should be rejected")
	}

	other := addUser(s, domain.RoleStudent, "Klein", "8b")
	oc, _ := connect(s, other)
	if s.Dispatch(oc, Command{Kind: KindJoin, RoomID: room.ID}) != Rejected {
		t.Fatal("class-mismatched join should be rejected")
	}
	if s.Dispatch(oc, Command{Kind: KindReady, RoomID: room.ID}) != Rejected {
		t.Fatal("non-member ready should be rejected")
	}
}

func TestAckClearsReadySetAndCountsCall(t *testing.T) {
	s := newTestManager()
	room, tc, tsend := makeRoom(t, s, "Math", "7a")
	stu, sc, ssend := joinStudent(t, s, room, "Meier")
	stu2, sc2, _ := joinStudent(t, s, room, "Lang")

	s.Dispatch(sc, Command{Kind: KindReady})
	s.Dispatch(sc2, Command{Kind: KindReady})

	if s.Dispatch(tc, Command{Kind: KindAck, RoomID: room.ID, TargetID: stu.ID}) != Applied {
		t.Fatal("ack rejected")
	}

	rt := s.runtimes[room.ID]
	if len(rt.Ready) != 0 {
		t.Fatalf("ready set not fully cleared: %d left", len(rt.Ready))
	}
	if stu.StatsFor("Math").Calls != 1 || rt.counters(stu.ID).Calls != 1 {
		t.Fatalf("target calls = %d/%d, want 1/1", stu.StatsFor("Math").Calls, rt.counters(stu.ID).Calls)
	}
	if stu2.StatsFor("Math").Calls != 0 {
		t.Fatal("non-target gained a call")
	}

	var called *domain.LogEntry
	for _, e := range s.logs[room.ID] {
		if e.Action == domain.LogCalled && e.UserID == stu.ID {
			called = e
		}
	}
	if called == nil {
		t.Fatal("no called log entry for target")
	}

	if ssend.lastOfType(t, "called") == nil {
		t.Fatal("target was not notified")
	}
	if tsend.lastOfType(t, "resetAll") == nil {
		t.Fatal("room did not get resetAll")
	}
	presence := tsend.lastOfType(t, "presence")
	if presence == nil {
		t.Fatal("no presence broadcast")
	}
	for _, m := range presence["members"].([]any) {
		entry := m.(map[string]any)
		if entry["ready"].(bool) {
			t.Fatalf("presence still shows ready for %v", entry["userId"])
		}
	}
}

func TestJoinMigrationPreservesToiletMembership(t *testing.T) {
	s := newTestManager()
	roomA, tcA, _ := makeRoom(t, s, "Math", "7a")
	roomB, _, _ := makeRoom(t, s, "Bio", "7a")
	stu, c, _ := joinStudent(t, s, roomA, "Meier")

	s.Dispatch(c, Command{Kind: KindToilet})
	if s.Dispatch(tcA, Command{Kind: KindToiletAllow, RoomID: roomA.ID, TargetID: stu.ID}) != Applied {
		t.Fatal("toiletAllow rejected")
	}

	if s.Dispatch(c, Command{Kind: KindJoin, RoomID: roomB.ID}) != Applied {
		t.Fatal("join B rejected")
	}
	if !s.runtimes[roomA.ID].isMember(stu.ID) {
		t.Fatal("toilet-away user lost room A membership")
	}
	if !s.runtimes[roomB.ID].isMember(stu.ID) {
		t.Fatal("user not member of room B")
	}

	// Resolve the workflow, rejoin A, then migrate again: membership
	// must not survive without an open toilet state.
	if s.Dispatch(c, Command{Kind: KindToiletBack, RoomID: roomA.ID}) != Applied {
		t.Fatal("toiletBack rejected")
	}
	s.Dispatch(c, Command{Kind: KindJoin, RoomID: roomA.ID})
	s.Dispatch(c, Command{Kind: KindJoin, RoomID: roomB.ID})
	if s.runtimes[roomA.ID].isMember(stu.ID) {
		t.Fatal("membership of A survived a plain migration")
	}
}

func TestLeaveKeepsMembershipWhileToiletOpen(t *testing.T) {
	s := newTestManager()
	room, _, _ := makeRoom(t, s, "Math", "7a")
	stu, c, _ := joinStudent(t, s, room, "Meier")

	s.Dispatch(c, Command{Kind: KindToilet})
	if s.Dispatch(c, Command{Kind: KindLeave}) != Applied {
		t.Fatal("leave rejected")
	}
	if !s.runtimes[room.ID].isMember(stu.ID) {
		t.Fatal("pending toilet user lost membership on leave")
	}
	if c.Room != "" {
		t.Fatal("socket still bound to room")
	}
}

func TestSelfCall(t *testing.T) {
	s := newTestManager()
	room, tc, _ := makeRoom(t, s, "Math", "7a")
	stu, c, ssend := joinStudent(t, s, room, "Meier")
	s.Dispatch(c, Command{Kind: KindReady})

	// Rejected until the room allows it.
	if s.Dispatch(c, Command{Kind: KindSelfCall}) != Rejected {
		t.Fatal("selfCall applied without allowSelfCall")
	}
	s.Dispatch(tc, Command{Kind: KindToggleSelfCall, RoomID: room.ID, Allow: true})

	if s.Dispatch(c, Command{Kind: KindSelfCall}) != Applied {
		t.Fatal("selfCall rejected")
	}
	rt := s.runtimes[room.ID]
	if _, ready := rt.Ready[stu.ID]; ready {
		t.Fatal("own ready flag not cleared")
	}
	if stu.StatsFor("Math").Calls != 1 || rt.counters(stu.ID).Calls != 1 {
		t.Fatal("call counters not incremented")
	}
	var entry *domain.LogEntry
	for _, e := range s.logs[room.ID] {
		if e.Action == domain.LogCalled {
			entry = e
		}
	}
	if entry == nil || !entry.SelfCall {
		t.Fatal("called log entry missing selfCall flag")
	}
	if ssend.lastOfType(t, "selfCallNotice") == nil {
		t.Fatal("student missing selfCallNotice")
	}
}

func TestImportantFlow(t *testing.T) {
	s := newTestManager()
	room, tc, tsend := makeRoom(t, s, "Math", "7a")
	stu, c, _ := joinStudent(t, s, room, "Meier")

	if s.Dispatch(tc, Command{Kind: KindImportant, RoomID: room.ID}) != Rejected {
		t.Fatal("staff important should be rejected")
	}
	if s.Dispatch(c, Command{Kind: KindImportant}) != Applied {
		t.Fatal("important rejected")
	}
	msg := tsend.lastOfType(t, "important")
	if msg == nil || msg["status"] != "pending" {
		t.Fatalf("want pending important broadcast, got %v", msg)
	}

	if s.Dispatch(tc, Command{Kind: KindImportantClear, RoomID: room.ID, TargetID: stu.ID}) != Applied {
		t.Fatal("importantClear rejected")
	}
	if msg = tsend.lastOfType(t, "important"); msg["status"] != "cleared" {
		t.Fatalf("want cleared broadcast, got %v", msg)
	}
	if _, ok := s.runtimes[room.ID].Important[stu.ID]; ok {
		t.Fatal("important flag survived clear")
	}
}

func TestWithdrawClearsImportant(t *testing.T) {
	s := newTestManager()
	room, _, _ := makeRoom(t, s, "Math", "7a")
	stu, c, _ := joinStudent(t, s, room, "Meier")

	s.Dispatch(c, Command{Kind: KindReady})
	s.Dispatch(c, Command{Kind: KindImportant})
	s.Dispatch(c, Command{Kind: KindWithdraw})

	rt := s.runtimes[room.ID]
	if _, ok := rt.Important[stu.ID]; ok {
		t.Fatal("withdraw left the important flag set")
	}
}

func TestQuestionQueueStaffOnly(t *testing.T) {
	s := newTestManager()
	room, _, tsend := makeRoom(t, s, "Math", "7a")
	_, c, ssend := joinStudent(t, s, room, "Meier")

	if s.Dispatch(c, Command{Kind: KindQuestionSubmit, Text: "  why?  "}) != Applied {
		t.Fatal("questionSubmit rejected")
	}
	q := tsend.lastOfType(t, "question")
	if q == nil {
		t.Fatal("teacher did not receive question")
	}
	if q["entry"].(map[string]any)["text"] != "why?" {
		t.Fatalf("question text not trimmed: %v", q["entry"])
	}
	if ssend.lastOfType(t, "question") != nil {
		t.Fatal("student saw the question queue")
	}
	if s.Dispatch(c, Command{Kind: KindQuestionSubmit, Text: "   "}) != Rejected {
		t.Fatal("blank question accepted")
	}
}

func TestRoomCloseRollsHomeworkOver(t *testing.T) {
	s := newTestManager()
	room, tc, _ := makeRoom(t, s, "Math", "7a")

	s.Dispatch(tc, Command{Kind: KindHomeworkSet, ClassName: "7a", Subject: "Math", Text: "p. 12"})
	if s.Dispatch(tc, Command{Kind: KindRoomClose, RoomID: room.ID}) != Applied {
		t.Fatal("roomClose rejected")
	}

	if room.Active {
		t.Fatal("room still active")
	}
	hw := s.homework[homeworkKey("7a", "Math")]
	if hw.Previous.Text != "p. 12" || hw.Current.Text != "" {
		t.Fatalf("homework not rolled over: %+v", hw)
	}

	// Closed rooms reject joins; session counters stay untouched.
	stu := addUser(s, domain.RoleStudent, "Meier", "7a")
	c, _ := connect(s, stu)
	if s.Dispatch(c, Command{Kind: KindJoin, RoomID: room.ID}) != Rejected {
		t.Fatal("join to closed room applied")
	}
	if s.runtimes[room.ID] == nil {
		t.Fatal("runtime dropped on close")
	}
}

func TestDisconnectLastSocketLeavesRoom(t *testing.T) {
	s := newTestManager()
	room, _, _ := makeRoom(t, s, "Math", "7a")
	stu, c1, _ := joinStudent(t, s, room, "Meier")
	c2, _ := connect(s, stu)
	s.Dispatch(c2, Command{Kind: KindJoin, RoomID: room.ID})

	s.Disconnect(c1)
	if !s.runtimes[room.ID].isMember(stu.ID) {
		t.Fatal("membership dropped while a second device is in the room")
	}
	s.Disconnect(c2)
	if s.runtimes[room.ID].isMember(stu.ID) {
		t.Fatal("membership survived the last disconnect")
	}
}

func TestToiletDurationRounding(t *testing.T) {
	cases := []struct {
		d    time.Duration
		want int
	}{
		{95 * time.Second, 100},
		{94*time.Second + 999*time.Millisecond, 90},
		{5 * time.Second, 10},
		{4*time.Second + 999*time.Millisecond, 0},
		{0, 0},
		{-3 * time.Second, 0},
	}
	for _, tc := range cases {
		if got := roundToiletSeconds(tc.d); got != tc.want {
			t.Errorf("roundToiletSeconds(%v) = %d, want %d", tc.d, got, tc.want)
		}
	}
}

func TestToiletWorkflow(t *testing.T) {
	s := newTestManager()
	advance := fixedClock(s, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	room, tc, _ := makeRoom(t, s, "Math", "7a")
	stu, c, ssend := joinStudent(t, s, room, "Meier")

	// back before allow is not a transition.
	if s.Dispatch(c, Command{Kind: KindToiletBack}) != Rejected {
		t.Fatal("toiletBack applied without allow")
	}
	if s.Dispatch(c, Command{Kind: KindToilet}) != Applied {
		t.Fatal("toilet request rejected")
	}
	if s.Dispatch(c, Command{Kind: KindToilet}) != Rejected {
		t.Fatal("duplicate toilet request applied")
	}
	if s.Dispatch(c, Command{Kind: KindToiletBack}) != Rejected {
		t.Fatal("toiletBack applied while only pending")
	}

	s.Dispatch(tc, Command{Kind: KindToiletAllow, RoomID: room.ID, TargetID: stu.ID})
	if ssend.lastOfType(t, "toiletAllowed") == nil {
		t.Fatal("student missing private toiletAllowed")
	}

	advance(95 * time.Second)
	if s.Dispatch(c, Command{Kind: KindToiletBack}) != Applied {
		t.Fatal("toiletBack rejected")
	}

	rec := stu.StatsFor("Math")
	if rec.ToiletSeconds != 100 || rec.Day("2026-03-02").ToiletSeconds != 100 {
		t.Fatalf("toilet seconds = %d/%d, want 100/100", rec.ToiletSeconds, rec.Day("2026-03-02").ToiletSeconds)
	}
	if s.runtimes[room.ID].counters(stu.ID).ToiletSeconds != 100 {
		t.Fatal("session toilet seconds wrong")
	}
	if s.runtimes[room.ID].Toilet[stu.ID] != nil {
		t.Fatal("toilet entry not removed after back")
	}
}

func TestToiletBackFromOtherRoomDropsMembership(t *testing.T) {
	s := newTestManager()
	roomA, tcA, tsendA := makeRoom(t, s, "Math", "7a")
	roomB, _, _ := makeRoom(t, s, "Bio", "7a")
	stu, c, _ := joinStudent(t, s, roomA, "Meier")

	s.Dispatch(c, Command{Kind: KindToilet})
	s.Dispatch(tcA, Command{Kind: KindToiletAllow, RoomID: roomA.ID, TargetID: stu.ID})
	s.Dispatch(c, Command{Kind: KindJoin, RoomID: roomB.ID})

	if s.Dispatch(c, Command{Kind: KindToiletBack, RoomID: roomA.ID}) != Applied {
		t.Fatal("toiletBack rejected")
	}
	if s.runtimes[roomA.ID].isMember(stu.ID) {
		t.Fatal("membership of A survived the resolved workflow")
	}
	if !s.runtimes[roomB.ID].isMember(stu.ID) {
		t.Fatal("membership of B lost")
	}
	if s.runtimes[roomA.ID].Toilet[stu.ID] != nil {
		t.Fatal("toilet entry left behind")
	}

	presence := tsendA.lastOfType(t, "presence")
	if presence == nil {
		t.Fatal("room A got no presence update")
	}
	for _, m := range presence["members"].([]any) {
		if m.(map[string]any)["userId"] == string(stu.ID) {
			t.Fatal("room A presence still lists the resolved user")
		}
	}
}

func TestOnlineChangeReachesToiletRooms(t *testing.T) {
	s := newTestManager()
	roomA, tcA, tsendA := makeRoom(t, s, "Math", "7a")
	roomB, _, _ := makeRoom(t, s, "Bio", "7a")
	stu, c, _ := joinStudent(t, s, roomA, "Meier")

	s.Dispatch(c, Command{Kind: KindToilet})
	s.Dispatch(tcA, Command{Kind: KindToiletAllow, RoomID: roomA.ID, TargetID: stu.ID})
	s.Dispatch(c, Command{Kind: KindJoin, RoomID: roomB.ID})

	s.Disconnect(c)
	presence := tsendA.lastOfType(t, "presence")
	if presence == nil {
		t.Fatal("room A got no presence update on disconnect")
	}
	var entry map[string]any
	for _, m := range presence["members"].([]any) {
		e := m.(map[string]any)
		if e["userId"] == string(stu.ID) {
			entry = e
		}
	}
	if entry == nil {
		t.Fatal("away user dropped from room A presence")
	}
	if entry["online"].(bool) {
		t.Fatal("room A still shows the user online")
	}

	// Logging back in refreshes the held room the same way.
	c2, _ := freshClient(s)
	if s.InitProfile(c2, ProfileInit{
		Mode: "login", Role: "student",
		FirstName: "Test", LastName: "Meier", ClassName: "7a", Password: "pw",
	}) != Applied {
		t.Fatal("re-login rejected")
	}
	presence = tsendA.lastOfType(t, "presence")
	for _, m := range presence["members"].([]any) {
		e := m.(map[string]any)
		if e["userId"] == string(stu.ID) && !e["online"].(bool) {
			t.Fatal("room A not told the user is back online")
		}
	}
}

func TestToggleSelfCallOwnerOrAdminOnly(t *testing.T) {
	s := newTestManager()
	room, tc, _ := makeRoom(t, s, "Math", "7a")
	other := addUser(s, domain.RoleTeacher, "Schulz", "")
	oc, _ := connect(s, other)

	if s.Dispatch(oc, Command{Kind: KindToggleSelfCall, RoomID: room.ID, Allow: true}) != Rejected {
		t.Fatal("foreign teacher changed room settings")
	}
	if room.AllowSelfCall {
		t.Fatal("flag flipped by rejected command")
	}

	if s.Dispatch(tc, Command{Kind: KindToggleSelfCall, RoomID: room.ID, Allow: true}) != Applied {
		t.Fatal("owner toggle rejected")
	}
	adm := addUser(s, domain.RoleAdmin, "Root", "")
	ac, _ := connect(s, adm)
	if s.Dispatch(ac, Command{Kind: KindToggleSelfCall, RoomID: room.ID, Allow: false}) != Applied {
		t.Fatal("admin toggle rejected")
	}
	if room.AllowSelfCall {
		t.Fatal("admin toggle had no effect")
	}
}
