package tcp

import (
	"net"
	"testing"

	"github.com/dialfleet/dispatch-core/xcrypt"
	"github.com/dialfleet/dispatch-core/xrand"
)

// testFormat is the fixed format tag used across this package's tests.
const testFormat = "TNN"

// readResult carries a ReadMessage outcome from the server goroutine.
type readResult struct {
	msg *TcpMessage
	err error
}

// stringPayload is a minimal JSON-able payload used to exercise the
// full write/read round trip without any wire-format generator.
type stringPayload struct {
	Value string `json:"value"`
}

func TestWriteReadMessage_RoundTrip(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("ListenTCP error: %v", err)
	}
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)

	resultCh := make(chan readResult, 1)

	aesKey, _ := xrand.GenerateRandomBytes(32)
	aesIv, _ := xrand.GenerateRandomBytes(16)
	aes, _ := crypter.NewAes(aesKey, aesIv)

	go func() {
		conn, err := ln.AcceptTCP()
		if err != nil {
			resultCh <- readResult{nil, err}
			return
		}
		defer conn.Close()

		serverConn := NewConn(conn, testFormat)
		serverConn.SetParser(DefaultParser)
		serverConn.SetCompressor(DefaultCompressor)
		serverConn.SetCrypter(aes)

		msg, err := serverConn.ReadMessage()
		resultCh <- readResult{msg, err}
	}()

	clientTCP, err := DialTCP(addr.String())
	if err != nil {
		t.Fatalf("DialTCP error: %v", err)
	}
	defer clientTCP.Close()

	clientConn := NewConn(clientTCP, testFormat)
	clientConn.SetParser(DefaultParser)
	clientConn.SetCompressor(DefaultCompressor)
	clientConn.SetCrypter(aes)

	payload := &stringPayload{Value: "hello world"}
	const kind int8 = 1

	if err := clientConn.WriteMessage(kind, payload); err != nil {
		t.Fatalf("WriteMessage error: %v", err)
	}

	res := <-resultCh
	if res.err != nil {
		t.Fatalf("server ReadMessage error: %v", res.err)
	}
	if res.msg == nil {
		t.Fatalf("server ReadMessage returned nil message")
	}

	gotPayload := &stringPayload{}

	err = res.msg.UnpackReadBody(gotPayload)
	if err != nil {
		t.Fatalf("unpack error: %v", err)
	}

	if gotPayload.Value != payload.Value {
		t.Fatalf("message payload mismatch.\n got=%v\nwant=%v", gotPayload.Value, payload.Value)
	}
}
