package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

const (
	civPreambleByte  = 0xfe
	civPostambleByte = 0xfd
	hostAddress      = 0x00 // CI-V address of this controller

	civMaxPayloadLen = 50
	// Partial frames longer than this are garbage, a scope data frame is the
	// longest one we expect.
	civMaxPendingLen = 256
)

var civPreamble = []byte{civPreambleByte, civPreambleByte}

var errPayloadTooLong = errors.New("payload too long")

// Commands reference: https://www.icomjapan.com/support/manual/1766/ (IC-7300 CI-V reference)
type civCmdSet struct {
	cmdSeq []byte
}

type civCmds map[string]civCmdSet

var civCommands = civCmds{
	// 0x03 // read operating frequency
	"getFreq": civCmdSet{cmdSeq: []byte{0x03}},
	// 0x04 // read operating mode and filter
	"getMode": civCmdSet{cmdSeq: []byte{0x04}},
	// 0x15 // meter levels
	"getVd": civCmdSet{cmdSeq: []byte{0x15, 0x15}},
	// 0x18 // power off/on, needs the wake-up preamble when the rig is off
	"powerOff": civCmdSet{cmdSeq: []byte{0x18, 0x00}},
	"powerOn":  civCmdSet{cmdSeq: []byte{0x18, 0x01}},
	// 0x27 // scope settings
	"getScopeData":    civCmdSet{cmdSeq: []byte{0x27, 0x00}},
	"scopeOff":        civCmdSet{cmdSeq: []byte{0x27, 0x10, 0x00}},
	"scopeOn":         civCmdSet{cmdSeq: []byte{0x27, 0x10, 0x01}},
	"scopeReadoutOff": civCmdSet{cmdSeq: []byte{0x27, 0x11, 0x00}},
	"scopeReadoutOn":  civCmdSet{cmdSeq: []byte{0x27, 0x11, 0x01}},
}

// splitCommand splits a frame body (everything after the addresses) into the
// longest known command path and the payload. Unknown commands are one byte.
func (c civCmds) splitCommand(body []byte) (cmd, payload []byte) {
	n := 1
	for _, set := range c {
		if len(set.cmdSeq) > n && bytes.HasPrefix(body, set.cmdSeq) {
			n = len(set.cmdSeq)
		}
	}
	if n > len(body) {
		n = len(body)
	}
	return body[:n], body[n:]
}

type civFrame struct {
	dst     byte
	src     byte
	cmd     []byte
	payload []byte
}

// isEcho is true for frames we sent ourselves, read back from the bus.
func (f civFrame) isEcho() bool {
	return f.src == hostAddress
}

func (f civFrame) is(command string) bool {
	set, ok := civCommands[command]
	return ok && bytes.Equal(f.cmd, set.cmdSeq)
}

func (f civFrame) String() string {
	return fmt.Sprintf("to %02x from %02x cmd [% x] payload [% x]", f.dst, f.src, f.cmd, f.payload)
}

// encodeFrame wraps the command and payload addressed to dst. There is no
// checksum in CI-V, only the delimiters.
func encodeFrame(dst byte, cmd []byte, payload []byte) ([]byte, error) {
	if len(payload) > civMaxPayloadLen {
		return nil, fmt.Errorf("%w: %d bytes", errPayloadTooLong, len(payload))
	}
	pkt := make([]byte, 0, len(civPreamble)+2+len(cmd)+len(payload)+1)
	pkt = append(pkt, civPreamble...)
	pkt = append(pkt, dst, hostAddress)
	pkt = append(pkt, cmd...)
	pkt = append(pkt, payload...)
	pkt = append(pkt, civPostambleByte)
	return pkt, nil
}

func prepPacket(dst byte, command string, data []byte) ([]byte, error) {
	set, ok := civCommands[command]
	if !ok {
		return nil, fmt.Errorf("unknown CI-V command %q", command)
	}
	return encodeFrame(dst, set.cmdSeq, data)
}

// civScanner extracts frames addressed to the host from a byte stream. Bytes
// of an unfinished frame are kept until the next feed.
type civScanner struct {
	buf     []byte
	metrics *civMetrics
}

func (s *civScanner) feed(d []byte) (frames []civFrame) {
	s.buf = append(s.buf, d...)
	for {
		start := bytes.Index(s.buf, civPreamble)
		if start < 0 {
			// A lone trailing 0xfe may be the first half of a preamble.
			if n := len(s.buf); n > 0 && s.buf[n-1] == civPreambleByte {
				s.buf = append(s.buf[:0], civPreambleByte)
			} else {
				s.buf = s.buf[:0]
			}
			return frames
		}

		end := bytes.IndexByte(s.buf[start:], civPostambleByte)
		if end < 0 {
			s.buf = s.buf[start:]
			if len(s.buf) > civMaxPendingLen {
				s.metrics.frameRejected("overflow")
				s.buf = s.buf[:0]
			}
			return frames
		}
		end += start

		// An unterminated frame followed by a complete one: restart at the
		// last preamble before the postamble.
		if i := bytes.LastIndex(s.buf[start:end], civPreamble); i > 0 {
			start += i
		}
		body := s.buf[start+len(civPreamble) : end]
		// Extra wake-up 0xfe bytes are allowed before the addresses.
		for len(body) > 0 && body[0] == civPreambleByte {
			body = body[1:]
		}

		f, reason := parseFrameBody(body)
		if reason == "" {
			s.metrics.frameAccepted()
			frames = append(frames, f)
		} else {
			s.metrics.frameRejected(reason)
		}
		s.buf = s.buf[end+1:]
	}
}

// feedHex accepts the hex text rendering of the stream, as found in captures.
func (s *civScanner) feedHex(h string) ([]civFrame, error) {
	h = strings.Join(strings.Fields(h), "")
	d, err := hex.DecodeString(h)
	if err != nil {
		return nil, fmt.Errorf("invalid hex capture: %w", err)
	}
	return s.feed(d), nil
}

func (s *civScanner) reset() {
	s.buf = s.buf[:0]
}

func parseFrameBody(body []byte) (f civFrame, rejectReason string) {
	// dst, src and at least one command byte
	if len(body) < 3 {
		return f, "short"
	}
	f.dst = body[0]
	f.src = body[1]
	if f.dst != hostAddress {
		return f, "not_for_host"
	}
	if f.isEcho() {
		return f, "echo"
	}
	// Copy, the scanner buffer is reused.
	rest := append([]byte(nil), body[2:]...)
	f.cmd, f.payload = civCommands.splitCommand(rest)
	return f, ""
}
