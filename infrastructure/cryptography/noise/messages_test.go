package noise

import "testing"

func TestMessageInitiationRoundTrip(t *testing.T) {
	m := &MessageInitiation{Sender: 7}
	for i := range m.Ephemeral {
		m.Ephemeral[i] = byte(i)
	}
	for i := range m.EncryptedStatic {
		m.EncryptedStatic[i] = byte(i + 1)
	}
	for i := range m.EncryptedTimestamp {
		m.EncryptedTimestamp[i] = byte(i + 2)
	}
	for i := range m.MAC1 {
		m.MAC1[i] = byte(i + 3)
	}

	wire := marshalInitiation(m)
	if len(wire) != MessageInitiationSize {
		t.Fatalf("wire length = %d, want %d", len(wire), MessageInitiationSize)
	}
	got, err := unmarshalInitiation(wire)
	if err != nil {
		t.Fatalf("unmarshalInitiation: %v", err)
	}
	if *got != *m {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, m)
	}
}

func TestMessageInitiationWrongSize(t *testing.T) {
	if _, err := unmarshalInitiation(make([]byte, 100)); err != ErrShortMessage {
		t.Fatalf("got err %v, want ErrShortMessage", err)
	}
}

func TestMessageResponseRoundTrip(t *testing.T) {
	m := &MessageResponse{Sender: 1, Receiver: 2}
	wire := marshalResponse(m)
	if len(wire) != MessageResponseSize {
		t.Fatalf("wire length = %d, want %d", len(wire), MessageResponseSize)
	}
	got, err := unmarshalResponse(wire)
	if err != nil {
		t.Fatalf("unmarshalResponse: %v", err)
	}
	if got.Sender != 1 || got.Receiver != 2 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestMessageCookieReplyRoundTrip(t *testing.T) {
	m := &MessageCookieReply{Receiver: 99}
	wire := marshalCookieReply(m)
	if len(wire) != MessageCookieReplySize {
		t.Fatalf("wire length = %d, want %d", len(wire), MessageCookieReplySize)
	}
	got, err := unmarshalCookieReply(wire)
	if err != nil {
		t.Fatalf("unmarshalCookieReply: %v", err)
	}
	if got.Receiver != 99 {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestTransportHeaderRoundTrip(t *testing.T) {
	content := []byte("ciphertext-and-tag")
	wire := marshalTransportHeader(5, 123456, content)
	hdr, got, err := unmarshalTransport(wire)
	if err != nil {
		t.Fatalf("unmarshalTransport: %v", err)
	}
	if hdr.Receiver != 5 || hdr.Counter != 123456 {
		t.Fatalf("header mismatch: %+v", hdr)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q want %q", got, content)
	}
}

func TestPeekType(t *testing.T) {
	wire := marshalInitiation(&MessageInitiation{})
	typ, err := PeekType(wire)
	if err != nil {
		t.Fatalf("PeekType: %v", err)
	}
	if typ != MessageInitiationType {
		t.Fatalf("type = %d, want %d", typ, MessageInitiationType)
	}

	bad := append([]byte{}, wire...)
	bad[1] = 1
	if _, err := PeekType(bad); err != ErrWrongMessageType {
		t.Fatalf("got err %v, want ErrWrongMessageType", err)
	}
}
