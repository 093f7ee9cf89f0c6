package protocol

import (
	"encoding/binary"
	"strings"
)

// MakeRequest fills pkt with a Non-confirmable request. Uri-Path segments
// and the Content-Format value are copied into scratch, which pkt borrows:
// scratch must outlive the Build call that encodes pkt. payload is borrowed
// as is. A nil token sends a zero-length token.
func MakeRequest(scratch []byte, pkt *Packet, uriPath string, payload []byte, msgID uint16, token []byte, method Code, ct ContentFormat) error {
	if err := resetPacket(pkt, NonConfirmable, method, msgID, token); err != nil {
		return err
	}

	used := 0
	for _, segment := range strings.Split(uriPath, "/") {
		if segment == "" {
			continue
		}
		if len(scratch)-used < len(segment) {
			return ErrBufferTooSmall
		}
		n := copy(scratch[used:], segment)
		if err := pkt.AddOption(OptionURIPath, scratch[used:used+n:used+n]); err != nil {
			return err
		}
		used += n
	}

	if err := appendContentFormat(scratch[used:], pkt, ct); err != nil {
		return err
	}
	setPayload(pkt, payload)
	return nil
}

// MakeResponse fills pkt with a piggy-backed response carrying code and the
// token echoed from the request.
func MakeResponse(scratch []byte, pkt *Packet, payload []byte, msgID uint16, token []byte, code Code, ct ContentFormat) error {
	if err := resetPacket(pkt, Acknowledgement, code, msgID, token); err != nil {
		return err
	}
	if err := appendContentFormat(scratch, pkt, ct); err != nil {
		return err
	}
	setPayload(pkt, payload)
	return nil
}

func resetPacket(pkt *Packet, t MessageType, code Code, msgID uint16, token []byte) error {
	if len(token) > MaxTokenLen {
		return ErrUnsupportedToken
	}
	pkt.Header = Header{
		Version:   Version,
		Type:      t,
		TokenLen:  uint8(len(token)),
		Code:      code,
		MessageID: msgID,
	}
	pkt.Token = token
	pkt.Payload = nil
	pkt.ResetOptions()
	return nil
}

func appendContentFormat(scratch []byte, pkt *Packet, ct ContentFormat) error {
	if ct == ContentFormatNone {
		return nil
	}
	if len(scratch) < 2 {
		return ErrBufferTooSmall
	}
	binary.BigEndian.PutUint16(scratch[:2], uint16(ct))
	return pkt.AddOption(OptionContentFormat, scratch[:2:2])
}

func setPayload(pkt *Packet, payload []byte) {
	if len(payload) == 0 {
		pkt.Payload = nil
		return
	}
	pkt.Payload = payload
}
