package protocol

import "fmt"

const (
	Version       uint8 = 1
	HeaderSize          = 4
	MaxTokenLen         = 8
	MaxOptions          = 16
	PayloadMarker byte  = 0xFF

	// MaxOptionDelta is the largest delta or length the three-tier nibble
	// scheme can carry (0xFFFF + 269).
	MaxOptionDelta uint32 = 0xFFFF + 269
)

// MessageType is the 2-bit message type carried in byte 0.
type MessageType uint8

const (
	Confirmable     MessageType = 0
	NonConfirmable  MessageType = 1
	Acknowledgement MessageType = 2
	Reset           MessageType = 3
)

func (t MessageType) String() string {
	switch t {
	case Confirmable:
		return "CON"
	case NonConfirmable:
		return "NON"
	case Acknowledgement:
		return "ACK"
	case Reset:
		return "RST"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// Code is the raw header code byte. Requests carry a method, responses a
// status; the codec never splits it into class and detail.
type Code uint8

const (
	Empty  Code = 0x00
	GET    Code = 0x01
	POST   Code = 0x02
	PUT    Code = 0x03
	DELETE Code = 0x04
)

const (
	Created               Code = 0x41
	Deleted               Code = 0x42
	Valid                 Code = 0x43
	Changed               Code = 0x44
	Content               Code = 0x45
	BadRequest            Code = 0x80
	Unauthorized          Code = 0x81
	BadOption             Code = 0x82
	Forbidden             Code = 0x83
	NotFound              Code = 0x84
	MethodNotAllowed      Code = 0x85
	NotAcceptable         Code = 0x86
	PreconditionFailed    Code = 0x8C
	RequestEntityTooLarge Code = 0x8D
	UnsupportedMediaType  Code = 0x8F
	InternalServerError   Code = 0xA0
	NotImplemented        Code = 0xA1
	BadGateway            Code = 0xA2
	ServiceUnavailable    Code = 0xA3
	GatewayTimeout        Code = 0xA4
	ProxyingNotSupported  Code = 0xA5

	// ErrorThreshold is the first code treated as an error response.
	ErrorThreshold Code = 0x80
)

var codeNames = map[Code]string{
	Empty:                 "Empty",
	GET:                   "GET",
	POST:                  "POST",
	PUT:                   "PUT",
	DELETE:                "DELETE",
	Created:               "Created",
	Deleted:               "Deleted",
	Valid:                 "Valid",
	Changed:               "Changed",
	Content:               "Content",
	BadRequest:            "BadRequest",
	Unauthorized:          "Unauthorized",
	BadOption:             "BadOption",
	Forbidden:             "Forbidden",
	NotFound:              "NotFound",
	MethodNotAllowed:      "MethodNotAllowed",
	NotAcceptable:         "NotAcceptable",
	PreconditionFailed:    "PreconditionFailed",
	RequestEntityTooLarge: "RequestEntityTooLarge",
	UnsupportedMediaType:  "UnsupportedMediaType",
	InternalServerError:   "InternalServerError",
	NotImplemented:        "NotImplemented",
	BadGateway:            "BadGateway",
	ServiceUnavailable:    "ServiceUnavailable",
	GatewayTimeout:        "GatewayTimeout",
	ProxyingNotSupported:  "ProxyingNotSupported",
}

// Dotted renders the code as class.detail, e.g. "2.05".
func (c Code) Dotted() string {
	return fmt.Sprintf("%d.%02d", uint8(c)>>5, uint8(c)&0x1F)
}

// String renders the code in dotted c.dd form for logs.
func (c Code) String() string {
	dotted := c.Dotted()
	if name, ok := codeNames[c]; ok {
		return dotted + " " + name
	}
	return dotted
}

// IsRequest reports whether c is a method code (0.01-0.31).
func (c Code) IsRequest() bool {
	return c != Empty && c < 0x20
}

// OptionNumber identifies an option. Numbers above 65535 can only be
// produced by delta accumulation and are kept as decoded.
type OptionNumber uint32

const (
	OptionIfMatch       OptionNumber = 1
	OptionURIHost       OptionNumber = 3
	OptionETag          OptionNumber = 4
	OptionIfNoneMatch   OptionNumber = 5
	OptionObserve       OptionNumber = 6
	OptionURIPort       OptionNumber = 7
	OptionLocationPath  OptionNumber = 8
	OptionURIPath       OptionNumber = 11
	OptionContentFormat OptionNumber = 12
	OptionMaxAge        OptionNumber = 14
	OptionURIQuery      OptionNumber = 15
	OptionAccept        OptionNumber = 17
	OptionLocationQuery OptionNumber = 20
	OptionProxyURI      OptionNumber = 35
	OptionProxyScheme   OptionNumber = 39
	OptionSize1         OptionNumber = 60
)

// ContentFormat is the Content-Format option value.
type ContentFormat uint16

const (
	TextPlain     ContentFormat = 0
	AppLinkFormat ContentFormat = 40
	AppXML        ContentFormat = 41
	AppOctets     ContentFormat = 42
	AppExi        ContentFormat = 47
	AppJSON       ContentFormat = 50
	AppCBOR       ContentFormat = 60

	// ContentFormatNone asks the builders to omit the Content-Format option.
	ContentFormatNone ContentFormat = 0xFFFF
)

// Header is the fixed 4-byte message header.
type Header struct {
	Version   uint8
	Type      MessageType
	TokenLen  uint8
	Code      Code
	MessageID uint16
}

// Option is one numbered option. Value aliases either the parse buffer or a
// builder scratch buffer.
type Option struct {
	Number OptionNumber
	Value  []byte
}

func (o Option) String() string {
	return fmt.Sprintf("%d=%q", o.Number, o.Value)
}

// Packet is one CoAP message with a bounded option list kept in ascending
// number order.
type Packet struct {
	Header  Header
	Token   []byte
	Payload []byte

	options    [MaxOptions]Option
	numOptions int
}

// Options returns the populated options. The slice aliases the packet.
func (p *Packet) Options() []Option {
	return p.options[:p.numOptions]
}

// NumOptions returns the number of populated options.
func (p *Packet) NumOptions() int {
	return p.numOptions
}

// ResetOptions drops every option.
func (p *Packet) ResetOptions() {
	for i := 0; i < p.numOptions; i++ {
		p.options[i] = Option{}
	}
	p.numOptions = 0
}

// AddOption appends an option. Numbers must not decrease; equal numbers form
// a contiguous run of repeated options.
func (p *Packet) AddOption(number OptionNumber, value []byte) error {
	if p.numOptions >= MaxOptions {
		return ErrTooManyOptions
	}
	if p.numOptions > 0 && number < p.options[p.numOptions-1].Number {
		return ErrOptionOrder
	}
	p.options[p.numOptions] = Option{Number: number, Value: value}
	p.numOptions++
	return nil
}

// Detach copies the token, option values and payload into one owned
// allocation so the packet no longer depends on its source buffer.
func (p *Packet) Detach() Packet {
	size := len(p.Token) + len(p.Payload)
	for _, opt := range p.Options() {
		size += len(opt.Value)
	}
	backing := make([]byte, 0, size)
	take := func(b []byte) []byte {
		if b == nil {
			return nil
		}
		start := len(backing)
		backing = append(backing, b...)
		return backing[start:len(backing):len(backing)]
	}

	out := Packet{Header: p.Header, numOptions: p.numOptions}
	out.Token = take(p.Token)
	for i, opt := range p.Options() {
		out.options[i] = Option{Number: opt.Number, Value: take(opt.Value)}
	}
	out.Payload = take(p.Payload)
	return out
}
