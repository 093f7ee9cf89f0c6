package protocol

import "encoding/binary"

// Parse decodes one datagram. The returned packet borrows from buf.
func Parse(buf []byte) (Packet, error) {
	var pkt Packet
	if err := ParseInto(&pkt, buf); err != nil {
		return Packet{}, err
	}
	return pkt, nil
}

// ParseInto decodes buf into a caller-owned packet, stopping at the first
// failing step.
func ParseInto(pkt *Packet, buf []byte) error {
	h, err := ParseHeader(buf)
	if err != nil {
		return err
	}
	tok, err := ParseToken(h, buf)
	if err != nil {
		return err
	}
	pkt.Header = h
	pkt.Token = tok
	return ParseOptionsAndPayload(pkt, buf)
}

// ParseHeader extracts the fixed header from the first four bytes.
func ParseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, ErrHeaderTooShort
	}
	h := Header{
		Version:   (buf[0] & 0xC0) >> 6,
		Type:      MessageType((buf[0] & 0x30) >> 4),
		TokenLen:  buf[0] & 0x0F,
		Code:      Code(buf[1]),
		MessageID: binary.BigEndian.Uint16(buf[2:4]),
	}
	if h.Version != Version {
		return Header{}, ErrUnsupportedVersion
	}
	return h, nil
}

// ParseToken returns the token bytes following the header, borrowed from buf.
func ParseToken(h Header, buf []byte) ([]byte, error) {
	if h.TokenLen == 0 {
		return nil, nil
	}
	if h.TokenLen > MaxTokenLen {
		return nil, ErrTokenTooShort
	}
	end := HeaderSize + int(h.TokenLen)
	if end > len(buf) {
		return nil, ErrTokenTooShort
	}
	return buf[HeaderSize:end:end], nil
}

// ParseOption decodes the option starting at buf[0]. runningDelta is the
// number of the previous option in the packet; the returned delta must be
// added to it by the caller before the next call. n is the number of bytes
// consumed.
func ParseOption(buf []byte, runningDelta uint32) (opt Option, delta uint32, n int, err error) {
	if len(buf) < 1 {
		return Option{}, 0, 0, ErrOptionHeaderTooShort
	}
	delta = uint32(buf[0] >> 4)
	length := uint32(buf[0] & 0x0F)
	n = 1

	delta, n, err = readExtended(buf, delta, n, ErrOptionDeltaInvalid)
	if err != nil {
		return Option{}, 0, 0, err
	}
	length, n, err = readExtended(buf, length, n, ErrOptionLenInvalid)
	if err != nil {
		return Option{}, 0, 0, err
	}

	if uint64(n)+uint64(length) > uint64(len(buf)) {
		return Option{}, 0, 0, ErrOptionTooBig
	}
	end := n + int(length)
	opt = Option{
		Number: OptionNumber(runningDelta + delta),
		Value:  buf[n:end:end],
	}
	return opt, delta, end, nil
}

// readExtended resolves a delta or length nibble, reading its extension
// bytes at buf[n:].
func readExtended(buf []byte, nibble uint32, n int, reserved error) (uint32, int, error) {
	switch nibble {
	case 13:
		if len(buf) < n+1 {
			return 0, 0, ErrOptionHeaderTooShort
		}
		return uint32(buf[n]) + 13, n + 1, nil
	case 14:
		if len(buf) < n+2 {
			return 0, 0, ErrOptionHeaderTooShort
		}
		return uint32(binary.BigEndian.Uint16(buf[n:n+2])) + 269, n + 2, nil
	case 15:
		return 0, 0, reserved
	default:
		return nibble, n, nil
	}
}

// ParseOptionsAndPayload decodes the options and payload that follow the
// header and token of pkt.Header. A marker with nothing after it, or no
// marker at all, leaves the payload empty.
func ParseOptionsAndPayload(pkt *Packet, buf []byte) error {
	pkt.ResetOptions()
	pkt.Payload = nil

	p := HeaderSize + int(pkt.Header.TokenLen)
	if p > len(buf) {
		return ErrOptionOverrunsPacket
	}

	var running uint32
	for p < len(buf) && buf[p] != PayloadMarker {
		if pkt.numOptions >= MaxOptions {
			return ErrTooManyOptions
		}
		opt, delta, n, err := ParseOption(buf[p:], running)
		if err != nil {
			return err
		}
		pkt.options[pkt.numOptions] = opt
		pkt.numOptions++
		running += delta
		p += n
	}

	if p+1 < len(buf) && buf[p] == PayloadMarker {
		pkt.Payload = buf[p+1:]
	}
	return nil
}
