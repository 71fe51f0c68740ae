package main

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

const (
	defaultReadTimeout = 2 * time.Second
	defaultMaxReads    = 15
	readChunkLen       = 256
)

// civPort is the part of serial.Port the transport uses, so tests can fake it.
type civPort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

func openSerialPort(name string, baud int, readTimeout time.Duration) (civPort, error) {
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("can't open serial port %s: %w", name, err)
	}
	if err := p.SetReadTimeout(readTimeout); err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("can't set read timeout on %s: %w", name, err)
	}
	return p, nil
}

// civTransport sends one frame and collects whatever comes back. It never
// retransmits; an empty result means no data this cycle.
type civTransport struct {
	port     civPort
	maxReads int
}

func newCIVTransport(port civPort, maxReads int) *civTransport {
	if maxReads <= 0 {
		maxReads = defaultMaxReads
	}
	return &civTransport{port: port, maxReads: maxReads}
}

func (t *civTransport) send(pkt []byte) error {
	if _, err := t.port.Write(pkt); err != nil {
		return fmt.Errorf("serial write: %w", err)
	}
	return nil
}

// readAttempt reads until a postamble arrives or the port times out, which
// the serial port reports as a zero length read.
func (t *civTransport) readAttempt() ([]byte, error) {
	var d []byte
	b := make([]byte, readChunkLen)
	for {
		n, err := t.port.Read(b)
		if err != nil {
			return d, fmt.Errorf("serial read: %w", err)
		}
		if n == 0 {
			break
		}
		d = append(d, b[:n]...)
		if bytes.IndexByte(b[:n], civPostambleByte) >= 0 {
			break
		}
	}
	return d, nil
}

// request writes pkt and concatenates up to maxReads read attempts. It stops
// early on the first silent attempt, or when done (if not nil) returns true
// for the bytes of the latest attempt.
func (t *civTransport) request(pkt []byte, done func(d []byte) bool) ([]byte, error) {
	if err := t.send(pkt); err != nil {
		return nil, err
	}
	var res []byte
	for i := 0; i < t.maxReads; i++ {
		d, err := t.readAttempt()
		res = append(res, d...)
		if err != nil {
			return res, err
		}
		if len(d) == 0 || (done != nil && done(d)) {
			break
		}
	}
	return res, nil
}

func (t *civTransport) close() error {
	return t.port.Close()
}
