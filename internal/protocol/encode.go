package protocol

import "encoding/binary"

// OptionNibble maps a delta or length onto its 4-bit code: the value itself
// below 13, 13 for one extension byte, 14 for two.
func OptionNibble(value uint32) (uint8, error) {
	switch {
	case value < 13:
		return uint8(value), nil
	case value <= 0xFF+13:
		return 13, nil
	case value <= MaxOptionDelta:
		return 14, nil
	default:
		return 0, ErrOptionOutOfRange
	}
}

// extensionLen is the number of extension bytes that follow a nibble.
func extensionLen(nibble uint8) int {
	switch nibble {
	case 13:
		return 1
	case 14:
		return 2
	default:
		return 0
	}
}

func putExtension(dst []byte, nibble uint8, value uint32) int {
	switch nibble {
	case 13:
		dst[0] = byte(value - 13)
		return 1
	case 14:
		binary.BigEndian.PutUint16(dst, uint16(value-269))
		return 2
	default:
		return 0
	}
}

// Build encodes pkt into out and returns the number of bytes written.
// Options are written in stored order; every write is bounds checked so a
// failed build never runs past out.
func Build(pkt *Packet, out []byte) (int, error) {
	h := pkt.Header
	if h.TokenLen > MaxTokenLen {
		return 0, ErrUnsupportedToken
	}
	if int(h.TokenLen) != len(pkt.Token) {
		return 0, ErrUnsupportedToken
	}
	if len(out) < HeaderSize+int(h.TokenLen) {
		return 0, ErrBufferTooSmall
	}

	out[0] = (h.Version&0x03)<<6 | (uint8(h.Type)&0x03)<<4 | h.TokenLen&0x0F
	out[1] = byte(h.Code)
	binary.BigEndian.PutUint16(out[2:4], h.MessageID)
	p := HeaderSize
	p += copy(out[p:], pkt.Token)

	var running OptionNumber
	for _, opt := range pkt.Options() {
		if opt.Number < running {
			return 0, ErrOptionOrder
		}
		optDelta := uint32(opt.Number - running)
		optLen := uint32(len(opt.Value))
		if uint64(len(opt.Value)) > uint64(MaxOptionDelta) {
			return 0, ErrOptionOutOfRange
		}
		dn, err := OptionNibble(optDelta)
		if err != nil {
			return 0, err
		}
		ln, err := OptionNibble(optLen)
		if err != nil {
			return 0, err
		}

		need := 1 + extensionLen(dn) + extensionLen(ln) + len(opt.Value)
		if len(out)-p < need {
			return 0, ErrBufferTooSmall
		}
		out[p] = dn<<4 | ln
		p++
		p += putExtension(out[p:], dn, optDelta)
		p += putExtension(out[p:], ln, optLen)
		p += copy(out[p:], opt.Value)
		running = opt.Number
	}

	if len(pkt.Payload) > 0 {
		if len(out)-p < 1+len(pkt.Payload) {
			return 0, ErrBufferTooSmall
		}
		out[p] = PayloadMarker
		p++
		p += copy(out[p:], pkt.Payload)
	}
	return p, nil
}

// Size returns the encoded length of pkt, or an error if it cannot be built.
func (p *Packet) Size() (int, error) {
	if len(p.Token) > MaxTokenLen {
		return 0, ErrUnsupportedToken
	}
	size := HeaderSize + len(p.Token)
	var running OptionNumber
	for _, opt := range p.Options() {
		if opt.Number < running {
			return 0, ErrOptionOrder
		}
		dn, err := OptionNibble(uint32(opt.Number - running))
		if err != nil {
			return 0, err
		}
		if uint64(len(opt.Value)) > uint64(MaxOptionDelta) {
			return 0, ErrOptionOutOfRange
		}
		ln, _ := OptionNibble(uint32(len(opt.Value)))
		size += 1 + extensionLen(dn) + extensionLen(ln) + len(opt.Value)
		running = opt.Number
	}
	if len(p.Payload) > 0 {
		size += 1 + len(p.Payload)
	}
	return size, nil
}
