package tcp

import (
	"bufio"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"github.com/dialfleet/dispatch-core/xcrypt"
)

// ErrEof is returned when the peer closed the connection cleanly.
var ErrEof = errors.New("EOF")

// ErrEofShort is returned when the peer closed mid-frame.
var ErrEofShort = errors.New("EOF_SHORT")

// ErrEpipe is returned on a broken-pipe write.
var ErrEpipe = errors.New("EPIPE")

// ErrEconnreset is returned when the peer reset the connection.
var ErrEconnreset = errors.New("ECONNRESET")

// ErrClosedConnection is returned for use-of-closed-network-connection errors.
var ErrClosedConnection = errors.New("CLOSED_CONNECTION")

// DefaultParser is the parser codec used until a caller overrides it.
var DefaultParser = JSON

// DefaultCompressor is the compressor codec used until a caller overrides it.
var DefaultCompressor = None

// DialTCP wraps net.DialTCP.
func DialTCP(address string) (*net.TCPConn, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, errors.Errorf("dial TCP error: %w", err)
	}
	return net.DialTCP("tcp", nil, tcpAddr)
}

// ListenTCP wraps net.ListenTCP.
func ListenTCP(address string) (*net.TCPListener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, errors.Errorf("resolve TCPAddr error: %w", err)
	}
	return net.ListenTCP("tcp", tcpAddr)
}

// Conn is a framed connection over a raw TCP socket.
type Conn interface {
	MessageHandler
	ConfigSetter
	RemoteAddr() net.Addr
}

// MessageHandler reads and writes framed messages.
type MessageHandler interface {
	WriteMessage(kind int8, v any) error
	ReadMessage() (*TcpMessage, error)
}

// ConfigSetter configures the codecs a connection uses.
type ConfigSetter interface {
	SetParser(parser ParserType)
	SetCompressor(compressor CompressorType)
	SetDeadLine(seconds int)
	SetCrypter(crypter crypter.Crypter)
}

// messageConn manages a single framed TCP connection. The scanner is
// initialized once; the parser and compressor start as DefaultParser and
// DefaultCompressor, change only through SetParser/SetCompressor, and
// apply to writes. Reads decode with the codecs named in each frame's
// header.
type messageConn struct {
	conn       *net.TCPConn
	scanner    *bufio.Scanner
	format     string
	parser     ParserType
	compressor CompressorType
	crypter    crypter.Crypter
}

// NewConn initializes a Conn over an established TCP socket.
func NewConn(tcpConn *net.TCPConn, format string) Conn {
	scanner := bufio.NewScanner(tcpConn)

	// Splitting on single bytes lets NewMessageFromByte re-attempt
	// parsing as each additional byte arrives, without a length-prefixed
	// bufio.Split of its own.
	scanner.Split(bufio.ScanBytes)
	return &messageConn{conn: tcpConn, scanner: scanner, format: format, parser: DefaultParser, compressor: DefaultCompressor}
}

// RemoteAddr returns the peer address.
func (mc *messageConn) RemoteAddr() net.Addr {
	return mc.conn.RemoteAddr()
}

// SetParser sets the parser codec used for subsequent writes.
func (mc *messageConn) SetParser(p ParserType) {
	mc.parser = p
}

// SetCompressor sets the compressor codec used for subsequent writes.
func (mc *messageConn) SetCompressor(c CompressorType) {
	mc.compressor = c
}

// SetCrypter sets the encryption codec used for subsequent reads and writes.
func (mc *messageConn) SetCrypter(c crypter.Crypter) {
	mc.crypter = c
}

// SetDeadLine sets a read/write deadline, in seconds from now.
func (mc *messageConn) SetDeadLine(seconds int) {
	mc.conn.SetDeadline(time.Now().Add(time.Duration(seconds) * time.Second))
}

// WriteMessage frames and writes v to the connection.
func (mc *messageConn) WriteMessage(kind int8, v any) error {
	message := NewMessage(mc.format, kind, mc.parser, mc.compressor, mc.crypter)
	err := message.PackWriteBody(v)
	if err != nil {
		return errors.Errorf("failed to create message: %w", err)
	}
	return mc.write(message)
}

// ReadMessage reads and parses the next frame off the connection.
func (mc *messageConn) ReadMessage() (*TcpMessage, error) {
	var rem []byte
	var message *TcpMessage
	var err error

	for {
		if ok := mc.scanner.Scan(); !ok {
			err = mc.scanner.Err()
			if err == nil {
				if len(rem) > 0 {
					return nil, ErrEofShort
				}
				return nil, ErrEof
			}
			if errors.Is(err, syscall.ECONNRESET) {
				return nil, ErrEconnreset
			}

			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "closed") {
				return nil, ErrClosedConnection
			}

			return nil, errors.Errorf("tcp scan error: %w", mc.scanner.Err())
		}

		b := mc.scanner.Bytes()

		// Partial reads accumulate in rem until NewMessageFromByte has
		// enough bytes for a full header and body.
		rem = append(rem, b...)

		if len(rem) == 0 {
			return nil, ErrHealthCheck
		}

		message, err = NewMessageFromByte(mc.format, rem, mc.crypter)
		if err == nil {
			break
		}
		switch true {
		case errors.Is(err, ErrLen), errors.Is(err, ErrFormat):
			return nil, err
		case errors.Is(err, ErrHeaderShort):
		case errors.Is(err, ErrBodyShort):
		default:
			return nil, err
		}
	}
	return message, nil
}

// write flushes a serialized message to the socket, retrying on short writes.
func (mc *messageConn) write(tcpMessage *TcpMessage) error {
	b := tcpMessage.ToByte()

	for len(b) > 0 {
		n, err := mc.conn.Write(b)
		if err != nil {
			if errors.Is(err, syscall.EPIPE) {
				return ErrEpipe
			}
			if errors.Is(err, syscall.ECONNRESET) {
				return ErrEconnreset
			}

			if errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "closed") {
				return ErrClosedConnection
			}

			return errors.Errorf("tcp write error: %w", err)
		}

		if n == 0 {
			logrus.Warn("tcp write error: n == 0")
			return nil
		}

		b = b[n:]
	}

	return nil
}
