package server

import (
	"errors"
	"testing"

	"github.com/danmuck/edgecoap/internal/protocol"
	"github.com/danmuck/edgecoap/internal/testutil/testlog"
)

func textHandler(body string) HandlerFunc {
	return func(scratch []byte, req, resp *protocol.Packet, msgID uint16) error {
		return protocol.MakeResponse(scratch, resp, []byte(body), msgID, req.Token, protocol.Content, protocol.TextPlain)
	}
}

func request(t *testing.T, method protocol.Code, path string) *protocol.Packet {
	t.Helper()
	var pkt protocol.Packet
	if err := protocol.MakeRequest(make([]byte, 64), &pkt, path, nil, 0x0102, []byte{0xaa, 0xbb}, method, protocol.ContentFormatNone); err != nil {
		t.Fatalf("make request: %v", err)
	}
	return &pkt
}

func TestDispatchRoutesByPathAndMethod(t *testing.T) {
	testlog.Start(t)
	r := NewRouter(
		Endpoint{Method: protocol.GET, Path: []string{"a", "b"}, Handler: textHandler("ab"), CoreAttr: "ct=0"},
		Endpoint{Method: protocol.GET, Path: []string{"a"}, Handler: textHandler("a")},
	)

	cases := []struct {
		name    string
		method  protocol.Code
		path    string
		code    protocol.Code
		payload string
	}{
		{"exact", protocol.GET, "/a/b", protocol.Content, "ab"},
		{"prefix is distinct", protocol.GET, "a", protocol.Content, "a"},
		{"wrong method", protocol.POST, "/a/b", protocol.MethodNotAllowed, ""},
		{"unknown path", protocol.GET, "/a/b/c", protocol.NotFound, ""},
		{"root", protocol.GET, "", protocol.NotFound, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var resp protocol.Packet
			req := request(t, tc.method, tc.path)
			if err := r.Dispatch(make([]byte, 64), req, &resp); err != nil {
				t.Fatalf("dispatch: %v", err)
			}
			if resp.Header.Code != tc.code || string(resp.Payload) != tc.payload {
				t.Fatalf("got code=%v payload=%q", resp.Header.Code, resp.Payload)
			}
			if string(resp.Token) != string(req.Token) || resp.Header.MessageID != req.Header.MessageID {
				t.Fatalf("token or message id not echoed")
			}
		})
	}
}

func TestDispatchSurfacesHandlerError(t *testing.T) {
	testlog.Start(t)
	boom := errors.New("boom")
	r := NewRouter(Endpoint{
		Method: protocol.DELETE,
		Path:   []string{"x"},
		Handler: func([]byte, *protocol.Packet, *protocol.Packet, uint16) error {
			return boom
		},
	})
	var resp protocol.Packet
	if err := r.Dispatch(make([]byte, 8), request(t, protocol.DELETE, "x"), &resp); !errors.Is(err, boom) {
		t.Fatalf("expected handler error, got %v", err)
	}
}

func TestDiscoveryListsAttributedEndpointsOnce(t *testing.T) {
	testlog.Start(t)
	r := NewRouter()
	r.Register(DiscoveryEndpoint(r))
	r.Register(Endpoint{Method: protocol.GET, Path: []string{"example_data"}, Handler: textHandler(""), CoreAttr: "ct=0"})
	r.Register(Endpoint{Method: protocol.PUT, Path: []string{"example_data"}, Handler: textHandler("")})

	want := "</.well-known/core>;ct=40,</example_data>;ct=0"
	if got := string(r.Discovery()); got != want {
		t.Fatalf("discovery got=%q want=%q", got, want)
	}

	r.Register(Endpoint{Method: protocol.GET, Path: []string{"late"}, Handler: textHandler(""), CoreAttr: "ct=0"})
	if got := string(r.Discovery()); got != want {
		t.Fatalf("discovery changed after late registration: %q", got)
	}

	var resp protocol.Packet
	req := request(t, protocol.GET, "/.well-known/core")
	if err := r.Dispatch(make([]byte, 8), req, &resp); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	ct, ok := resp.ContentFormat()
	if !ok || ct != protocol.AppLinkFormat {
		t.Fatalf("unexpected content format %d ok=%v", ct, ok)
	}
	if string(resp.Payload) != want {
		t.Fatalf("unexpected payload %q", resp.Payload)
	}
}

func TestDiscoveryTruncatesToMaxLen(t *testing.T) {
	testlog.Start(t)
	r := NewRouter()
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'x'
	}
	for i := 0; i < 10; i++ {
		r.Register(Endpoint{Method: protocol.GET, Path: []string{string(long)}, Handler: textHandler(""), CoreAttr: "ct=0"})
	}
	if got := len(r.Discovery()); got != DiscoveryMaxLen {
		t.Fatalf("expected %d bytes, got %d", DiscoveryMaxLen, got)
	}
}
