package protocol

import (
	"bytes"
	"context"
	"testing"

	"github.com/plgd-dev/go-coap/v3/message"
	"github.com/plgd-dev/go-coap/v3/message/codes"
	"github.com/plgd-dev/go-coap/v3/message/pool"
	"github.com/plgd-dev/go-coap/v3/udp/coder"
)

func TestBuiltRequestDecodesWithGoCoap(t *testing.T) {
	scratch := make([]byte, 64)
	var pkt Packet
	token := []byte{0x10, 0x20, 0x30, 0x40}
	err := MakeRequest(scratch, &pkt, ".well-known/core", []byte("ping"), 0x1234, token, POST, AppLinkFormat)
	if err != nil {
		t.Fatalf("make request: %v", err)
	}
	buf := make([]byte, 128)
	n, err := Build(&pkt, buf)
	if err != nil {
		t.Fatalf("build: %v", err)
	}

	msg := pool.NewMessage(context.Background())
	defer msg.Reset()
	if _, err := msg.UnmarshalWithDecoder(coder.DefaultCoder, buf[:n]); err != nil {
		t.Fatalf("go-coap unmarshal: %v", err)
	}
	if msg.Code() != codes.POST {
		t.Fatalf("unexpected code %v", msg.Code())
	}
	if msg.Type() != message.NonConfirmable {
		t.Fatalf("unexpected type %v", msg.Type())
	}
	if msg.MessageID() != 0x1234 {
		t.Fatalf("unexpected message id %d", msg.MessageID())
	}
	if !bytes.Equal(msg.Token(), token) {
		t.Fatalf("unexpected token %x", msg.Token())
	}
	path, err := msg.Options().Path()
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if path != "/.well-known/core" {
		t.Fatalf("unexpected path %q", path)
	}
	cf, err := msg.ContentFormat()
	if err != nil {
		t.Fatalf("content format: %v", err)
	}
	if cf != message.AppLinkFormat {
		t.Fatalf("unexpected content format %v", cf)
	}
	body, err := msg.ReadBody()
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != "ping" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestGoCoapResponseParses(t *testing.T) {
	msg := pool.NewMessage(context.Background())
	defer msg.Reset()
	msg.SetCode(codes.Content)
	msg.SetType(message.Acknowledgement)
	msg.SetMessageID(0x0abc)
	msg.SetToken(message.Token("tok1"))
	if err := msg.SetPath("/a/b2/c"); err != nil {
		t.Fatalf("set path: %v", err)
	}
	msg.SetContentFormat(message.TextPlain)
	msg.SetBody(bytes.NewReader([]byte("hello")))

	data, err := msg.MarshalWithEncoder(coder.DefaultCoder)
	if err != nil {
		t.Fatalf("go-coap marshal: %v", err)
	}

	pkt, err := Parse(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	resp, err := HandleResponse(&pkt)
	if err != nil {
		t.Fatalf("handle response: %v", err)
	}
	if resp.Type != Acknowledgement || resp.Code != Content || resp.MessageID != 0x0abc {
		t.Fatalf("unexpected response header: %+v", resp)
	}
	if string(resp.Token) != "tok1" {
		t.Fatalf("unexpected token %q", resp.Token)
	}
	if len(resp.Path) != 3 || resp.Path[1] != "b2" {
		t.Fatalf("unexpected path %q", resp.Path)
	}
	if !resp.HasContentFormat || resp.ContentFormat != TextPlain {
		t.Fatalf("unexpected content format %d", resp.ContentFormat)
	}
	if string(resp.Payload) != "hello" {
		t.Fatalf("unexpected payload %q", resp.Payload)
	}

	first, count := FindOptions(&pkt, OptionURIPath)
	if first == nil || count != 3 || string(first.Value) != "a" {
		t.Fatalf("unexpected uri-path run first=%v count=%d", first, count)
	}
}
