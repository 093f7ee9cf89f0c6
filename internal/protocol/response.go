package protocol

// Response is the caller-facing view of a successful response. Path and
// Payload borrow from the packet they were classified from.
type Response struct {
	Type             MessageType
	Code             Code
	MessageID        uint16
	Token            []byte
	Path             []string
	ContentFormat    ContentFormat
	HasContentFormat bool
	Payload          []byte
}

// HandleResponse classifies a decoded response. Version mismatches return
// ErrUnsupportedVersion; 4.04 and 4.05 map to ErrNotFound and
// ErrMethodNotAllowed; any other code at or above ErrorThreshold maps to
// ErrResponseCode. The returned Response is populated in every case except
// the version mismatch.
func HandleResponse(pkt *Packet) (Response, error) {
	if pkt == nil {
		return Response{}, ErrHeaderTooShort
	}
	if pkt.Header.Version != Version {
		return Response{}, ErrUnsupportedVersion
	}

	resp := Response{
		Type:      pkt.Header.Type,
		Code:      pkt.Header.Code,
		MessageID: pkt.Header.MessageID,
		Token:     pkt.Token,
		Path:      pkt.URIPath(),
		Payload:   pkt.Payload,
	}
	resp.ContentFormat, resp.HasContentFormat = pkt.ContentFormat()

	if pkt.Header.Code >= ErrorThreshold {
		return resp, &ResponseError{Code: pkt.Header.Code}
	}
	return resp, nil
}
