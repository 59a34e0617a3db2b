package noise

import "testing"

func TestReplayFilterAcceptsIncreasingCounters(t *testing.T) {
	var f ReplayFilter
	for i := uint64(0); i < 10; i++ {
		if !f.Check(i) {
			t.Fatalf("counter %d should be accepted", i)
		}
		if !f.Accept(i) {
			t.Fatalf("Accept(%d) should succeed", i)
		}
	}
}

func TestReplayFilterRejectsDuplicate(t *testing.T) {
	var f ReplayFilter
	f.Accept(5)
	if f.Check(5) {
		t.Fatal("duplicate counter should be rejected")
	}
	if f.Accept(5) {
		t.Fatal("Accept of a duplicate counter should fail")
	}
}

func TestReplayFilterAcceptsOutOfOrderWithinWindow(t *testing.T) {
	var f ReplayFilter
	f.Accept(100)
	if !f.Check(50) {
		t.Fatal("counter within the 128-wide window should be accepted")
	}
	if !f.Accept(50) {
		t.Fatal("Accept should succeed for a fresh counter within the window")
	}
	if f.Accept(50) {
		t.Fatal("re-accepting the same counter should fail")
	}
}

func TestReplayFilterRejectsBelowWindow(t *testing.T) {
	var f ReplayFilter
	f.Accept(1000)
	// top - c >= 128 must be rejected (exactly at the boundary and beyond).
	if f.Check(1000 - ReplayWindowSize) {
		t.Fatal("counter exactly ReplayWindowSize below max should be rejected")
	}
	if f.Check(1000 - ReplayWindowSize - 1) {
		t.Fatal("counter further below max should be rejected")
	}
	if !f.Check(1000 - ReplayWindowSize + 1) {
		t.Fatal("counter one inside the window boundary should be accepted")
	}
}

func TestReplayFilterLargeForwardJumpClearsWindow(t *testing.T) {
	var f ReplayFilter
	f.Accept(10)
	f.Accept(20)
	f.Accept(1_000_000)
	if f.Check(20) {
		t.Fatal("counters from before a large jump must not reappear as acceptable")
	}
	if !f.Check(1_000_000 - 1) {
		t.Fatal("counter just below the new max should still be acceptable")
	}
}

func TestReplayFilterRejectsAtRejectAfterMessages(t *testing.T) {
	var f ReplayFilter
	if f.Check(RejectAfterMessages) {
		t.Fatal("RejectAfterMessages itself must never be accepted")
	}
	if f.Check(RejectAfterMessages + 1) {
		t.Fatal("counters beyond RejectAfterMessages must never be accepted")
	}
}
