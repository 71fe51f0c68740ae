package main

import (
	"bytes"
	"errors"
	"time"
)

var errPortClosed = errors.New("port closed")

// fakePort replays queued read chunks. An empty chunk reads as a timeout, as
// does an empty queue.
type fakePort struct {
	written bytes.Buffer
	writes  [][]byte
	reads   [][]byte
	// onWrite returns chunks to queue as the rig's answer to a write
	onWrite  func(p []byte) [][]byte
	readErr  error
	writeErr error
	closed   bool
	readCnt  int
}

func (p *fakePort) Write(b []byte) (int, error) {
	if p.closed {
		return 0, errPortClosed
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written.Write(b)
	p.writes = append(p.writes, append([]byte(nil), b...))
	if p.onWrite != nil {
		p.reads = append(p.reads, p.onWrite(b)...)
	}
	return len(b), nil
}

func (p *fakePort) Read(b []byte) (int, error) {
	p.readCnt++
	if p.closed {
		return 0, errPortClosed
	}
	if len(p.reads) == 0 {
		if p.readErr != nil {
			return 0, p.readErr
		}
		return 0, nil
	}
	n := copy(b, p.reads[0])
	if n < len(p.reads[0]) {
		p.reads[0] = p.reads[0][n:]
	} else {
		p.reads = p.reads[1:]
	}
	return n, nil
}

func (p *fakePort) SetReadTimeout(t time.Duration) error {
	return nil
}

func (p *fakePort) Close() error {
	p.closed = true
	return nil
}

const testRigAddress = 0x94

// rigFrame builds a frame the rig sends to the host.
func rigFrame(body ...byte) []byte {
	f := []byte{0xfe, 0xfe, hostAddress, testRigAddress}
	f = append(f, body...)
	return append(f, 0xfd)
}

func ackFrame() []byte {
	return rigFrame(OK)
}

func concat(chunks ...[]byte) []byte {
	var d []byte
	for _, c := range chunks {
		d = append(d, c...)
	}
	return d
}

// the IC-7300 reports a ±2.5 kHz span like this
var testSpanCode = []byte{0x00, 0x25, 0x00, 0x00, 0x00, 0x00}

func testAmplitudes() []byte {
	a := make([]byte, scopeSamples)
	for i := range a {
		a[i] = byte(i % 0xa1)
	}
	return a
}

func scopeDataFrame(seq byte, data []byte) []byte {
	return rigFrame(append([]byte{0x27, 0x00, scopeMain, seq, 0x11}, data...)...)
}

func scopeHeaderData(center uint, amplitudes []byte) []byte {
	freq := encodeFreqData(center)
	d := []byte{0x00}
	d = append(d, freq[:]...)
	d = append(d, testSpanCode...)
	return append(d, amplitudes...)
}

var scopeSeqMarkers = []byte{0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x10}

// sweepFrames is one IC-7300 style sweep: a header without amplitudes, nine
// frames of 50 samples and a last one of 25.
func sweepFrames(center uint, amplitudes []byte) [][]byte {
	frames := [][]byte{scopeDataFrame(scopeFirstMarker, scopeHeaderData(center, nil))}
	for i, seq := range scopeSeqMarkers {
		frames = append(frames, scopeDataFrame(seq, amplitudes[i*50:(i+1)*50]))
	}
	return append(frames, scopeDataFrame(scopeLastMarker, amplitudes[450:]))
}

func parseFrames(t interface{ Helper() }, raw ...[]byte) []civFrame {
	t.Helper()
	var s civScanner
	var frames []civFrame
	for _, r := range raw {
		frames = append(frames, s.feed(r)...)
	}
	return frames
}
