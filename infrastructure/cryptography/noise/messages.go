package noise

import "encoding/binary"

// MessageInitiation is the 148-byte Type 1 wire message (§4.3).
type MessageInitiation struct {
	Sender          uint32
	Ephemeral       PublicKey
	EncryptedStatic [noisePublicKeySize + chachaPolyTagSize]byte
	EncryptedTimestamp [tai64nSize + chachaPolyTagSize]byte
	MAC1            [16]byte
	MAC2            [16]byte
}

// MessageResponse is the 92-byte Type 2 wire message.
type MessageResponse struct {
	Sender    uint32
	Receiver  uint32
	Ephemeral PublicKey
	EncryptedEmpty [chachaPolyTagSize]byte
	MAC1      [16]byte
	MAC2      [16]byte
}

// MessageCookieReply is the 64-byte Type 3 wire message.
type MessageCookieReply struct {
	Receiver       uint32
	Nonce          [cookieNonceSize]byte
	EncryptedCookie [cookieSize + chachaPolyTagSize]byte
}

// TransportHeader is the fixed 16-byte prefix of a Type 4 message; Content
// (ciphertext||tag) follows immediately and may be empty-plaintext
// (keepalive), i.e. exactly chachaPolyTagSize bytes of Content.
type TransportHeader struct {
	Receiver uint32
	Counter  uint64
}

func marshalInitiation(m *MessageInitiation) []byte {
	b := make([]byte, MessageInitiationSize)
	binary.LittleEndian.PutUint32(b[0:4], MessageInitiationType)
	binary.LittleEndian.PutUint32(b[4:8], m.Sender)
	copy(b[8:40], m.Ephemeral[:])
	copy(b[40:88], m.EncryptedStatic[:])
	copy(b[88:116], m.EncryptedTimestamp[:])
	copy(b[116:132], m.MAC1[:])
	copy(b[132:148], m.MAC2[:])
	return b
}

func unmarshalInitiation(b []byte) (*MessageInitiation, error) {
	if len(b) != MessageInitiationSize {
		return nil, ErrShortMessage
	}
	if binary.LittleEndian.Uint32(b[0:4]) != MessageInitiationType {
		return nil, ErrWrongMessageType
	}
	m := &MessageInitiation{Sender: binary.LittleEndian.Uint32(b[4:8])}
	copy(m.Ephemeral[:], b[8:40])
	copy(m.EncryptedStatic[:], b[40:88])
	copy(m.EncryptedTimestamp[:], b[88:116])
	copy(m.MAC1[:], b[116:132])
	copy(m.MAC2[:], b[132:148])
	return m, nil
}

func marshalResponse(m *MessageResponse) []byte {
	b := make([]byte, MessageResponseSize)
	binary.LittleEndian.PutUint32(b[0:4], MessageResponseType)
	binary.LittleEndian.PutUint32(b[4:8], m.Sender)
	binary.LittleEndian.PutUint32(b[8:12], m.Receiver)
	copy(b[12:44], m.Ephemeral[:])
	copy(b[44:60], m.EncryptedEmpty[:])
	copy(b[60:76], m.MAC1[:])
	copy(b[76:92], m.MAC2[:])
	return b
}

func unmarshalResponse(b []byte) (*MessageResponse, error) {
	if len(b) != MessageResponseSize {
		return nil, ErrShortMessage
	}
	if binary.LittleEndian.Uint32(b[0:4]) != MessageResponseType {
		return nil, ErrWrongMessageType
	}
	m := &MessageResponse{
		Sender:   binary.LittleEndian.Uint32(b[4:8]),
		Receiver: binary.LittleEndian.Uint32(b[8:12]),
	}
	copy(m.Ephemeral[:], b[12:44])
	copy(m.EncryptedEmpty[:], b[44:60])
	copy(m.MAC1[:], b[60:76])
	copy(m.MAC2[:], b[76:92])
	return m, nil
}

func marshalCookieReply(m *MessageCookieReply) []byte {
	b := make([]byte, MessageCookieReplySize)
	binary.LittleEndian.PutUint32(b[0:4], MessageCookieReplyType)
	binary.LittleEndian.PutUint32(b[4:8], m.Receiver)
	copy(b[8:32], m.Nonce[:])
	copy(b[32:64], m.EncryptedCookie[:])
	return b
}

func unmarshalCookieReply(b []byte) (*MessageCookieReply, error) {
	if len(b) != MessageCookieReplySize {
		return nil, ErrShortMessage
	}
	if binary.LittleEndian.Uint32(b[0:4]) != MessageCookieReplyType {
		return nil, ErrWrongMessageType
	}
	m := &MessageCookieReply{Receiver: binary.LittleEndian.Uint32(b[4:8])}
	copy(m.Nonce[:], b[8:32])
	copy(m.EncryptedCookie[:], b[32:64])
	return m, nil
}

// PeekType reads the message type byte without otherwise validating b. The
// reserved bytes (b[1:4]) are required to be zero, matching §4.3; a nonzero
// reserved field is treated as an unknown type and rejected.
func PeekType(b []byte) (uint32, error) {
	if len(b) < 4 {
		return 0, ErrShortMessage
	}
	if b[1] != 0 || b[2] != 0 || b[3] != 0 {
		return 0, ErrWrongMessageType
	}
	return binary.LittleEndian.Uint32(b[0:4]), nil
}

func marshalTransportHeader(receiver uint32, counter uint64, content []byte) []byte {
	b := make([]byte, MessageTransportHeaderSize+len(content))
	binary.LittleEndian.PutUint32(b[0:4], MessageTransportType)
	binary.LittleEndian.PutUint32(b[4:8], receiver)
	binary.LittleEndian.PutUint64(b[8:16], counter)
	copy(b[16:], content)
	return b
}

// unmarshalTransport splits a Type 4 message into its header and content
// (ciphertext||tag); content may be zero-length plaintext, but never shorter
// than the AEAD tag.
func unmarshalTransport(b []byte) (TransportHeader, []byte, error) {
	if len(b) < MessageTransportMinSize {
		return TransportHeader{}, nil, ErrShortMessage
	}
	if binary.LittleEndian.Uint32(b[0:4]) != MessageTransportType {
		return TransportHeader{}, nil, ErrWrongMessageType
	}
	hdr := TransportHeader{
		Receiver: binary.LittleEndian.Uint32(b[4:8]),
		Counter:  binary.LittleEndian.Uint64(b[8:16]),
	}
	return hdr, b[16:], nil
}

// The Marshal/Unmarshal wrappers below expose the wire codec to callers
// outside this package (the dispatch engine), which needs to put messages
// on the UDP socket and peek the type of whatever comes back.

func MarshalInitiation(m *MessageInitiation) []byte { return marshalInitiation(m) }
func UnmarshalInitiation(b []byte) (*MessageInitiation, error) { return unmarshalInitiation(b) }

func MarshalResponse(m *MessageResponse) []byte { return marshalResponse(m) }
func UnmarshalResponse(b []byte) (*MessageResponse, error) { return unmarshalResponse(b) }

func MarshalCookieReply(m *MessageCookieReply) []byte { return marshalCookieReply(m) }
func UnmarshalCookieReply(b []byte) (*MessageCookieReply, error) { return unmarshalCookieReply(b) }

func MarshalTransportHeader(receiver uint32, counter uint64, content []byte) []byte {
	return marshalTransportHeader(receiver, counter, content)
}

func UnmarshalTransport(b []byte) (TransportHeader, []byte, error) { return unmarshalTransport(b) }
