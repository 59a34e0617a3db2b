package noise

import (
	"testing"
)

func TestCookieCheckerMAC1RoundTrip(t *testing.T) {
	_, responderPub, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	checker := NewCookieChecker(responderPub)
	cs := &CookieState{}

	msg := []byte("a fake initiation minus its mac fields")
	mac1, mac2 := cs.AddMacs(msg, checker.mac1Key)
	if mac2 != ([16]byte{}) {
		t.Fatalf("expected zero mac2 with no cached cookie, got %x", mac2)
	}
	if !checker.CheckMAC1(msg, mac1) {
		t.Fatal("responder failed to verify initiator's mac1")
	}

	tampered := append([]byte{}, msg...)
	tampered[0] ^= 0xFF
	if checker.CheckMAC1(tampered, mac1) {
		t.Fatal("mac1 verified against a tampered message")
	}
}

func TestCookieReplyRoundTrip(t *testing.T) {
	_, responderPub, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	checker := NewCookieChecker(responderPub)
	cs := &CookieState{}

	msg := []byte("initiation body")
	mac1, _ := cs.AddMacs(msg, checker.mac1Key)

	src := []byte("198.51.100.7:51820")
	reply, err := checker.CreateReply(src, 42, mac1)
	if err != nil {
		t.Fatalf("CreateReply: %v", err)
	}
	if reply.Receiver != 42 {
		t.Fatalf("reply receiver = %d, want 42", reply.Receiver)
	}

	if err := cs.ConsumeReply(reply, checker.cookieEncryptionKey, mac1); err != nil {
		t.Fatalf("ConsumeReply: %v", err)
	}
	if !cs.haveCookie {
		t.Fatal("expected cookie to be cached after ConsumeReply")
	}

	// A second initiation now carries a nonzero mac2 derived from the cached
	// cookie, and the responder must accept it against the same source.
	msg2 := []byte("second initiation body")
	mac1b, mac2b := cs.AddMacs(msg2, checker.mac1Key)
	withMAC1 := append(append([]byte{}, msg2...), mac1b[:]...)
	if !checker.CheckMAC2(withMAC1, mac2b, src) {
		t.Fatal("responder failed to verify mac2 derived from its own cookie")
	}
}

func TestCookieReplyWrongAADFails(t *testing.T) {
	_, responderPub, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	checker := NewCookieChecker(responderPub)
	cs := &CookieState{}

	mac1 := [16]byte{1, 2, 3}
	reply, err := checker.CreateReply([]byte("src"), 1, mac1)
	if err != nil {
		t.Fatalf("CreateReply: %v", err)
	}

	wrongMAC1 := [16]byte{9, 9, 9}
	if err := cs.ConsumeReply(reply, checker.cookieEncryptionKey, wrongMAC1); err == nil {
		t.Fatal("expected ConsumeReply to fail when AAD does not match the sealing mac1")
	}
}

func TestCheckMAC2WithoutCookieFails(t *testing.T) {
	_, responderPub, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	checker := NewCookieChecker(responderPub)
	if checker.CheckMAC2([]byte("anything"), [16]byte{}, []byte("src")) {
		t.Fatal("mac2 should never verify before any secret has been generated")
	}
}
