package main

import (
	"errors"
	"fmt"
)

const (
	scopeSamples = 475

	// sequence number markers of the first and the last frame of a sweep
	scopeFirstMarker = 0x01
	scopeLastMarker  = 0x11

	scopeMain = 0x00 // main scope, the sub scope is ignored
	// header data: index byte, 5 byte center frequency, 6 byte span code
	scopeHeaderLen = 1 + freqDataLen + spanDataLen
)

var (
	errScopeIncomplete = errors.New("scope sweep incomplete")
	errScopeMalformed  = errors.New("malformed scope sweep")
)

type scopeState int

const (
	scopeIdle scopeState = iota
	scopeAwaitingHeader
	scopeAccumulating
	scopeComplete
)

func (s scopeState) String() string {
	switch s {
	case scopeIdle:
		return "idle"
	case scopeAwaitingHeader:
		return "awaiting header"
	case scopeAccumulating:
		return "accumulating"
	case scopeComplete:
		return "complete"
	}
	return fmt.Sprintf("scopeState(%d)", int(s))
}

type scopeSweep struct {
	amplitudes []int // scopeSamples values 0-255, or empty
	centerFreq uint
	span       uint
}

func (s scopeSweep) complete() bool {
	return len(s.amplitudes) == scopeSamples
}

// Samples run from centerFreq-span to centerFreq+span.
func (s scopeSweep) freqRange() (from, to uint) {
	if s.span > s.centerFreq {
		return 0, s.centerFreq + s.span
	}
	return s.centerFreq - s.span, s.centerFreq + s.span
}

func (s scopeSweep) peak() (idx, amplitude int) {
	for i, a := range s.amplitudes {
		if a > amplitude {
			idx, amplitude = i, a
		}
	}
	return
}

// scopeReassembler collects the frames of one scope data sweep. It has no
// timer, the caller counts its read attempts with attempt().
type scopeReassembler struct {
	state    scopeState
	budget   int
	attempts int

	data       []byte
	centerFreq uint
	span       uint
	sweep      scopeSweep
}

func newScopeReassembler(budget int) *scopeReassembler {
	if budget <= 0 {
		budget = defaultMaxReads
	}
	return &scopeReassembler{budget: budget}
}

// begin starts a new session, dropping any previous one.
func (r *scopeReassembler) begin() {
	r.reset()
	r.state = scopeAwaitingHeader
}

func (r *scopeReassembler) reset() {
	r.state = scopeIdle
	r.attempts = 0
	r.data = r.data[:0]
	r.centerFreq = 0
	r.span = 0
}

func (r *scopeReassembler) abort() {
	r.reset()
	r.sweep = scopeSweep{}
}

// attempt accounts for one read. Once the budget is used up an unfinished
// session is discarded and errScopeIncomplete returned.
func (r *scopeReassembler) attempt() error {
	if r.state == scopeComplete {
		return nil
	}
	if r.attempts >= r.budget {
		state := r.state
		r.abort()
		return fmt.Errorf("%w: %s after %d reads", errScopeIncomplete, state, r.budget)
	}
	r.attempts++
	return nil
}

// feed processes one frame. Frames that are not main scope data are ignored.
// done is true once the sweep is complete.
func (r *scopeReassembler) feed(f civFrame) (done bool, err error) {
	if !f.is("getScopeData") || len(f.payload) < 3 || f.payload[0] != scopeMain {
		return r.state == scopeComplete, nil
	}
	marker := f.payload[1]
	data := f.payload[3:]

	switch r.state {
	case scopeAwaitingHeader:
		if marker != scopeFirstMarker {
			return false, nil
		}
		if len(data) < scopeHeaderLen {
			r.abort()
			return false, fmt.Errorf("%w: header is %d bytes", errScopeMalformed, len(data))
		}
		r.centerFreq = decodeFreqData(data[1 : 1+freqDataLen])
		r.span = decodeSpanData(data[1+freqDataLen : scopeHeaderLen])
		// the rest of the header frame is the first amplitude chunk
		r.data = append(r.data[:0], data[scopeHeaderLen:]...)
		r.state = scopeAccumulating
		return false, nil
	case scopeAccumulating:
		r.data = append(r.data, data...)
		if marker != scopeLastMarker {
			return false, nil
		}
		return r.finish()
	case scopeComplete:
		return true, nil
	}
	return false, nil
}

func (r *scopeReassembler) finish() (bool, error) {
	if len(r.data) != scopeSamples {
		n := len(r.data)
		r.abort()
		return false, fmt.Errorf("%w: %d samples", errScopeMalformed, n)
	}
	amplitudes := make([]int, scopeSamples)
	for i, b := range r.data {
		amplitudes[i] = int(b)
	}
	r.sweep = scopeSweep{amplitudes: amplitudes, centerFreq: r.centerFreq, span: r.span}
	r.state = scopeComplete
	return true, nil
}

// result returns the last complete sweep.
func (r *scopeReassembler) result() (scopeSweep, bool) {
	if r.state != scopeComplete {
		return scopeSweep{}, false
	}
	return r.sweep, true
}
