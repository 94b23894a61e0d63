package serial

import (
	"io"
	"sync"
)

// FileTransport is a Transport backed by an already-open device file (e.g.
// a tty opened by the caller), grounded on the teacher's tImpl wrapping a
// plain io.ReadWriteCloser (client/transport.go) -- generalized from "SSH
// session stdin/stdout pipes" to "any read-write-closer byte stream",
// since spec §1 places the physical serial-port driver itself (baud rate,
// line discipline) out of scope: callers are expected to open and
// configure the device however their platform requires, and hand the
// resulting io.ReadWriteCloser in here.
type FileTransport struct {
	rwc io.ReadWriteCloser
	rx  func(byte)

	mu     sync.Mutex
	closed bool
}

// NewFileTransport wraps rwc as a Transport, starting a background
// goroutine that reads one byte at a time and delivers it to rx -- the
// same "inject a trace reader" shape as the teacher's
// injectTraceReader, generalized from tracing a read to driving it.
func NewFileTransport(rwc io.ReadWriteCloser, rx func(byte)) *FileTransport {
	t := &FileTransport{rwc: rwc, rx: rx}
	go t.readLoop()
	return t
}

func (t *FileTransport) readLoop() {
	buf := make([]byte, 256)
	for {
		n, err := t.rwc.Read(buf)
		for i := 0; i < n; i++ {
			t.rx(buf[i])
		}
		if err != nil {
			return
		}
	}
}

// TxReady always reports true: a plain file descriptor has no notion of
// "not ready to accept a byte" short of blocking on Write itself.
func (t *FileTransport) TxReady() bool { return true }

// TxPut writes b to the device, discarding any error -- callers that need
// to observe write failures should prefer a Transport with a real TxReady
// signal; this one exists for the common case of a always-writable tty.
func (t *FileTransport) TxPut(b byte) {
	_, _ = t.rwc.Write([]byte{b})
}

func (t *FileTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	return t.rwc.Close()
}
