package protocol

import "strings"

// FindOptions returns the first option with the given number and the length
// of its contiguous run. Options are sorted, so the scan stops as soon as
// the run ends. It returns nil, 0 when the number is absent.
func FindOptions(pkt *Packet, number OptionNumber) (*Option, int) {
	start, count := pkt.findRun(number)
	if count == 0 {
		return nil, 0
	}
	return &pkt.options[start], count
}

// OptionRun returns the contiguous run of options with the given number.
func (p *Packet) OptionRun(number OptionNumber) []Option {
	start, count := p.findRun(number)
	if count == 0 {
		return nil
	}
	return p.options[start : start+count]
}

func (p *Packet) findRun(number OptionNumber) (start, count int) {
	for i := 0; i < p.numOptions; i++ {
		if p.options[i].Number == number {
			if count == 0 {
				start = i
			}
			count++
			continue
		}
		if count > 0 {
			break
		}
	}
	return start, count
}

// URIPath returns the Uri-Path segments in order.
func (p *Packet) URIPath() []string {
	run := p.OptionRun(OptionURIPath)
	if len(run) == 0 {
		return nil
	}
	segments := make([]string, len(run))
	for i, opt := range run {
		segments[i] = string(opt.Value)
	}
	return segments
}

// Path joins the Uri-Path segments with a leading slash.
func (p *Packet) Path() string {
	return "/" + strings.Join(p.URIPath(), "/")
}

// ContentFormat decodes the Content-Format option when present.
func (p *Packet) ContentFormat() (ContentFormat, bool) {
	opt, count := FindOptions(p, OptionContentFormat)
	if opt == nil || count != 1 {
		return 0, false
	}
	v, ok := decodeUint(opt.Value)
	if !ok || v > 0xFFFF {
		return 0, false
	}
	return ContentFormat(v), true
}

// OptionString copies an option value into dst and returns the filled
// prefix. dst must have room for the whole value.
func OptionString(dst []byte, opt *Option) (string, error) {
	if opt == nil {
		return "", nil
	}
	if len(opt.Value) > len(dst) {
		return "", ErrBufferTooSmall
	}
	n := copy(dst, opt.Value)
	return string(dst[:n]), nil
}

// decodeUint reads a big-endian uint option value of up to four bytes.
func decodeUint(b []byte) (uint32, bool) {
	if len(b) > 4 {
		return 0, false
	}
	var v uint32
	for _, c := range b {
		v = v<<8 | uint32(c)
	}
	return v, true
}
