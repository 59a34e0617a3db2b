package noise

import (
	"bytes"
	"testing"

	"golang.org/x/crypto/curve25519"
	"golang.zx2c4.com/wireguard/tai64n"
)

func TestX25519TestVector(t *testing.T) {
	// RFC 7748 §5.2 test vector 1.
	scalar := []byte{
		0xa5, 0x46, 0xe3, 0x6b, 0xf0, 0x52, 0x7c, 0x9d, 0x3b, 0x16, 0x15, 0x4b,
		0x82, 0x46, 0x5e, 0xdd, 0x62, 0x14, 0x4c, 0x0a, 0xc1, 0xfc, 0x5a, 0x18,
		0x50, 0x6a, 0x22, 0x44, 0xba, 0x44, 0x9a, 0xc4,
	}
	point := []byte{
		0xe6, 0xdb, 0x68, 0x67, 0x58, 0x30, 0x30, 0xdb, 0x35, 0x94, 0xc1, 0xa4,
		0x24, 0xb1, 0x5f, 0x7c, 0x72, 0x66, 0x24, 0xec, 0x26, 0xb3, 0x35, 0x3b,
		0x10, 0xa9, 0x03, 0xa6, 0xd0, 0xab, 0x1c, 0x4c,
	}
	want := []byte{
		0xc3, 0xda, 0x55, 0x37, 0x9d, 0xe9, 0xc6, 0x90, 0x8e, 0x94, 0xea, 0x4d,
		0xf2, 0x8d, 0x08, 0x4f, 0x32, 0xec, 0xcf, 0x03, 0x49, 0x1c, 0x71, 0xf7,
		0x54, 0xb4, 0x07, 0x55, 0x77, 0xa2, 0x85, 0x52,
	}
	got, err := curve25519.X25519(scalar, point)
	if err != nil {
		t.Fatalf("X25519: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Fatalf("X25519 result mismatch\ngot:  %x\nwant: %x", got, want)
	}
}

func TestInitialChainingKeyConstant(t *testing.T) {
	ck := blakeHash([]byte(noiseConstruction))
	want := "60e26daef327efc02ec335e2a025d2d016eb4206f87277f52d38d1988b78cd36"
	if hexString(ck[:]) != want {
		t.Fatalf("initial chaining key = %s, want %s", hexString(ck[:]), want)
	}
}

func hexString(b []byte) string {
	const digits = "0123456789abcdef"
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = digits[v>>4]
		out[i*2+1] = digits[v&0xf]
	}
	return string(out)
}

func TestInitialHashStableForSameResponderKey(t *testing.T) {
	_, pub, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	a := newSymmetricState(pub)
	b := newSymmetricState(pub)
	if a.hash != b.hash || a.chainingKey != b.chainingKey {
		t.Fatal("newSymmetricState is not deterministic in the responder static key")
	}
}

func TestHandshakeRoundTrip(t *testing.T) {
	initStatic, initPub, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair initiator: %v", err)
	}
	respStatic, respPub, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair responder: %v", err)
	}
	var psk PresharedKey
	copy(psk[:], bytes.Repeat([]byte{0x42}, 32))

	initiator, err := NewInitiatorHandshake(initStatic, respPub, psk)
	if err != nil {
		t.Fatalf("NewInitiatorHandshake: %v", err)
	}
	initiation, err := initiator.CreateInitiation(1)
	if err != nil {
		t.Fatalf("CreateInitiation: %v", err)
	}

	responder, ts, err := NewResponderHandshakeFromInitiation(respStatic, initiation, func(pk PublicKey) (PresharedKey, bool) {
		if pk == initPub {
			return psk, true
		}
		return PresharedKey{}, false
	})
	if err != nil {
		t.Fatalf("NewResponderHandshakeFromInitiation: %v", err)
	}
	if responder.remoteStatic != initPub {
		t.Fatal("responder recovered wrong initiator static key")
	}
	if ts == (tai64n.Timestamp{}) {
		t.Fatal("responder decoded a zero timestamp")
	}

	response, respSend, respRecv, err := responder.CreateResponse(2)
	if err != nil {
		t.Fatalf("CreateResponse: %v", err)
	}

	initSend, initRecv, err := initiator.ConsumeResponse(response)
	if err != nil {
		t.Fatalf("ConsumeResponse: %v", err)
	}

	if initSend != respRecv || initRecv != respSend {
		t.Fatal("initiator/responder transport keys are not mirror images")
	}
	if responder.symmetric.hash != initiator.symmetric.hash {
		t.Fatal("final hash differs between initiator and responder")
	}

	// Confirm the derived keys actually work for data: encrypt under one
	// side's send key, decrypt under the other's matching receive key.
	kpInit := NewTransportKeypair(initSend, initRecv, initiator.localIndex, initiator.remoteIndex)
	kpResp := NewTransportKeypair(respSend, respRecv, responder.localIndex, responder.remoteIndex)

	pkt, err := kpInit.Seal([]byte("hello responder"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	hdr, content, err := unmarshalTransport(pkt)
	if err != nil {
		t.Fatalf("unmarshalTransport: %v", err)
	}
	plain, err := kpResp.Open(hdr, content)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(plain) != "hello responder" {
		t.Fatalf("decrypted payload = %q", plain)
	}
}

func TestHandshakeTamperedInitiationAlwaysRejected(t *testing.T) {
	initStatic, _, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}
	respStatic, respPub, err := GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair: %v", err)
	}

	initiator, err := NewInitiatorHandshake(initStatic, respPub, PresharedKey{})
	if err != nil {
		t.Fatalf("NewInitiatorHandshake: %v", err)
	}
	initiation, err := initiator.CreateInitiation(1)
	if err != nil {
		t.Fatalf("CreateInitiation: %v", err)
	}

	wire := marshalInitiation(initiation)
	wire[50] ^= 0xFF
	tampered, err := unmarshalInitiation(wire)
	if err != nil {
		t.Fatalf("unmarshalInitiation: %v", err)
	}

	if _, _, err := NewResponderHandshakeFromInitiation(respStatic, tampered, func(PublicKey) (PresharedKey, bool) {
		return PresharedKey{}, false
	}); err == nil {
		t.Fatal("expected a single tampered byte to cause handshake failure")
	}
}
