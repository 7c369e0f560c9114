// Package tcpout implements the raw-port, raw-legacy-port, and
// json-port TCP listeners: each accepted connection gets its own
// buffered write strand (so a slow client never blocks the producer
// or interleaves partial writes across goroutines), and a
// dispatch.Group fans a published message out to every connected
// client.
package tcpout

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"uat978/internal/dispatch"
	"uat978/internal/message"
	"uat978/internal/rawio"
	"uat978/internal/uat"
)

// writeQueue is a mutex-guarded channel wrapper: Send and Close agree
// on a closed flag so a dispatch handler racing a disconnect never
// sends on (or double-closes) a closed channel.
type writeQueue struct {
	mu     sync.Mutex
	ch     chan string
	closed bool
}

func newWriteQueue(depth int) *writeQueue {
	return &writeQueue{ch: make(chan string, depth)}
}

// Send enqueues line, reporting false if the queue is closed or full.
func (q *writeQueue) Send(line string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.ch <- line:
		return true
	default:
		return false
	}
}

// Close marks the queue closed and closes the underlying channel,
// exactly once.
func (q *writeQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.ch)
}

// Format selects which wire encoding a Listener's clients receive.
type Format int

const (
	// FormatRaw emits rawio lines, preceded by a metadata header line
	// on connect.
	FormatRaw Format = iota
	// FormatRawLegacy emits rawio lines with no header line.
	FormatRawLegacy
	// FormatJSON emits one JSON object per line, downlink messages
	// only.
	FormatJSON
)

const writeQueueDepth = 256

// Listener accepts TCP connections on one address and fans published
// messages out to all of them in the selected Format.
type Listener struct {
	addr     string
	format   Format
	header   message.RawMessage
	logger   *logrus.Logger
	group    *dispatch.Group
	ln       net.Listener
}

// New builds a Listener bound to addr (host:port). header is only used
// when format is FormatRaw; it is sent once per new connection before
// any data lines.
func New(addr string, format Format, header message.RawMessage, logger *logrus.Logger) *Listener {
	return &Listener{
		addr:   addr,
		format: format,
		header: header,
		logger: logger,
		group:  dispatch.NewGroup(),
	}
}

// Listen binds the listener's address (without yet accepting
// connections) and returns the bound address, letting callers discover
// an ephemeral port (e.g. "127.0.0.1:0" in tests) before Serve runs.
func (l *Listener) Listen() (string, error) {
	ln, err := net.Listen("tcp", l.addr)
	if err != nil {
		return "", fmt.Errorf("tcpout: listen %s: %w", l.addr, err)
	}
	l.ln = ln
	return ln.Addr().String(), nil
}

// Serve accepts connections until stop is closed or the listener
// fails. Listen must have been called first. It blocks; callers
// typically run it in its own goroutine/errgroup member.
func (l *Listener) Serve(stop <-chan struct{}) error {
	if l.ln == nil {
		if _, err := l.Listen(); err != nil {
			return err
		}
	}
	ln := l.ln

	go func() {
		<-stop
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-stop:
				return nil
			default:
				return fmt.Errorf("tcpout: accept on %s: %w", l.addr, err)
			}
		}
		l.handleConn(conn)
	}
}

// handleConn registers a write strand for conn and starts a reader
// goroutine that discards input but notices disconnects promptly.
func (l *Listener) handleConn(conn net.Conn) {
	clientID := uuid.New().String()
	queue := newWriteQueue(writeQueueDepth)
	dropped := 0

	// Queue the header before joining the group so no dispatched line
	// can reach the client ahead of it.
	if l.format == FormatRaw {
		if line, err := rawio.Format(l.header); err == nil {
			queue.Send(line)
		}
	}

	var groupID uint64
	groupID = l.group.Add(func(id uint64, msg any) {
		if !queue.Send(msg.(string)) {
			dropped++
			if dropped%100 == 1 {
				l.logger.WithFields(logrus.Fields{
					"client":  clientID,
					"addr":    l.addr,
					"dropped": dropped,
				}).Warn("tcpout: client write queue full or closed, dropping line")
			}
		}
	})

	go l.writeStrand(conn, queue, groupID)
	go l.readDiscard(conn, clientID, groupID, queue)

	l.logger.WithFields(logrus.Fields{"client": clientID, "addr": l.addr}).Info("tcpout: client connected")
}

// writeStrand is the single goroutine allowed to write to conn,
// serializing every queued line so writes never interleave.
func (l *Listener) writeStrand(conn net.Conn, queue *writeQueue, groupID uint64) {
	w := bufio.NewWriter(conn)
	defer conn.Close()
	for line := range queue.ch {
		if _, err := w.WriteString(line); err != nil {
			l.group.Remove(groupID)
			return
		}
		if err := w.Flush(); err != nil {
			l.group.Remove(groupID)
			return
		}
	}
}

// readDiscard drains and discards whatever the client sends, noticing
// disconnects (a read error or EOF), unregistering the client and
// closing its write queue so writeStrand can exit.
func (l *Listener) readDiscard(conn net.Conn, clientID string, groupID uint64, queue *writeQueue) {
	buf := make([]byte, 512)
	for {
		conn.SetReadDeadline(time.Time{})
		_, err := conn.Read(buf)
		if err != nil {
			l.group.Remove(groupID)
			queue.Close()
			l.logger.WithFields(logrus.Fields{"client": clientID, "addr": l.addr}).Info("tcpout: client disconnected")
			return
		}
	}
}

// Publish renders msg for this listener's Format and fans it out to
// every connected client. Non-downlink messages are silently skipped
// for FormatJSON, which only ever emits decoded downlink frames.
func (l *Listener) Publish(msg message.RawMessage, decoded *uat.Message) {
	switch l.format {
	case FormatJSON:
		if decoded == nil {
			return
		}
		b, err := decoded.MarshalJSON()
		if err != nil {
			return
		}
		l.group.Dispatch(string(b) + "\n")
	default:
		line, err := rawio.Format(msg)
		if err != nil {
			return
		}
		l.group.Dispatch(line)
	}
}

// ClientCount reports the number of currently connected clients.
func (l *Listener) ClientCount() int {
	return l.group.Len()
}

// Addr reports the address this listener was configured with, for use
// as a metrics label.
func (l *Listener) Addr() string {
	return l.addr
}

// Close stops accepting new connections.
func (l *Listener) Close() error {
	if l.ln != nil {
		return l.ln.Close()
	}
	return nil
}
