package main

import (
	"bytes"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	OK = 0xfb
	NG = 0xfa

	// A rig that is switched off needs this many 0xfe bytes at 19200 baud
	// before the power on command, proportionally more at higher rates.
	wakeUpPreambleLen  = 25
	wakeUpPreambleBaud = 19200
)

var errCommandRejected = errors.New("command rejected by rig")

type rigConfig struct {
	profile      rigProfile
	port         civPort
	log          *zap.SugaredLogger
	metrics      *civMetrics
	maxReads     int
	debugPackets bool
	// receives the raw bytes of every scope data read, may be nil
	onScopeRead  func(d []byte)
}

// decodedRigState is what one poll of the rig returns. Nothing is cached
// between polls, the rig does not push updates.
type decodedRigState struct {
	frequency       uint
	mode            string
	supplyVoltage   float64
	supplyVoltageOK bool
}

// civRig talks to one rig over one serial connection. It is synchronous and
// does no locking: only one caller may use it at a time.
type civRig struct {
	profile      rigProfile
	st           *civTransport
	scanner      civScanner
	scope        *scopeReassembler
	// frames of the scope stream parsed but not yet fed to the reassembler
	pending      []civFrame
	onScopeRead  func(d []byte)
	log          *zap.SugaredLogger
	metrics      *civMetrics
	debugPackets bool
}

func newCIVRig(cfg rigConfig) *civRig {
	l := cfg.log
	if l == nil {
		l = zap.NewNop().Sugar()
	}
	st := newCIVTransport(cfg.port, cfg.maxReads)
	return &civRig{
		profile:      cfg.profile,
		st:           st,
		scanner:      civScanner{metrics: cfg.metrics},
		scope:        newScopeReassembler(st.maxReads),
		onScopeRead:  cfg.onScopeRead,
		log:          l,
		metrics:      cfg.metrics,
		debugPackets: cfg.debugPackets,
	}
}

// transact sends a command and returns the first received frame match accepts.
// found is false if nothing matched within the read budget.
func (r *civRig) transact(command string, data []byte, match func(f civFrame) bool) (f civFrame, found bool, err error) {
	pkt, err := prepPacket(r.profile.address, command, data)
	if err != nil {
		return f, false, err
	}
	if r.debugPackets {
		r.debugPacket(command, pkt)
	}

	r.scanner.reset()
	_, err = r.st.request(pkt, func(d []byte) bool {
		for _, rf := range r.scanner.feed(d) {
			if r.debugPackets {
				r.debugFrame("received", rf)
			}
			if !found && match(rf) {
				f, found = rf, true
			}
		}
		return found
	})
	if err != nil {
		return civFrame{}, false, fmt.Errorf("%s: %w", command, err)
	}
	return f, found, nil
}

func isAck(f civFrame) bool {
	return len(f.cmd) == 1 && (f.cmd[0] == OK || f.cmd[0] == NG)
}

// setCmd sends a command which is answered with OK or NG. A missing answer
// is logged, not returned: the link is noisy and the caller polls again.
func (r *civRig) setCmd(command string) error {
	f, found, err := r.transact(command, nil, isAck)
	if err != nil {
		return err
	}
	if !found {
		r.log.Debugw("no acknowledge", "cmd", command)
		return nil
	}
	if f.cmd[0] == NG {
		return fmt.Errorf("%s: %w", command, errCommandRejected)
	}
	return nil
}

func (r *civRig) decodeFailed(value string, f civFrame, found bool) {
	r.metrics.decodeFailed(value)
	if found {
		r.log.Debugw("can't decode response", "value", value, "frame", f.String())
	} else {
		r.log.Debugw("no response", "value", value)
	}
}

// readFrequencyHz returns 0 if the response is missing or undecodable.
func (r *civRig) readFrequencyHz() (uint, error) {
	f, found, err := r.transact("getFreq", nil, func(f civFrame) bool {
		return f.is("getFreq") && len(f.payload) == freqDataLen
	})
	if err != nil {
		return 0, err
	}
	var freq uint
	if found {
		freq = decodeFreqData(f.payload)
	}
	if freq == 0 {
		r.decodeFailed("frequency", f, found)
		return 0, nil
	}
	r.metrics.reportFrequency(freq)
	return freq, nil
}

// readOperatingMode returns "N/A" if the response is missing or undecodable.
func (r *civRig) readOperatingMode() (string, error) {
	f, found, err := r.transact("getMode", nil, func(f civFrame) bool {
		// mode, optionally followed by the filter
		return f.is("getMode") && len(f.payload) >= 1 && len(f.payload) <= 2
	})
	if err != nil {
		return modeNA, err
	}
	code := modeNAIdx
	if found {
		if c, ok := BCDToDec(f.payload[:1]); ok {
			code = c
		}
	}
	mode := decodeOperatingMode(code)
	if mode == modeNA {
		r.decodeFailed("mode", f, found)
	}
	return mode, nil
}

// readSupplyVoltageV reports ok=false, with 0V, if there was no usable reading.
func (r *civRig) readSupplyVoltageV() (volts float64, ok bool, err error) {
	f, found, err := r.transact("getVd", nil, func(f civFrame) bool {
		return f.is("getVd") && len(f.payload) == 2
	})
	if err != nil {
		return 0, false, err
	}
	raw := -1
	if found {
		if v, bcdOK := BCDToDec(f.payload); bcdOK {
			raw = v
		}
	}
	if volts, ok = decodeSupplyVoltage(raw); !ok {
		r.decodeFailed("supply_voltage", f, found)
		return 0, false, nil
	}
	r.metrics.reportVoltage(volts)
	return volts, true, nil
}

func (r *civRig) readState() (s decodedRigState, err error) {
	if s.frequency, err = r.readFrequencyHz(); err != nil {
		return
	}
	if s.mode, err = r.readOperatingMode(); err != nil {
		return
	}
	s.supplyVoltage, s.supplyVoltageOK, err = r.readSupplyVoltageV()
	return
}

func (r *civRig) startScopeReadout() error {
	return r.setCmd("scopeReadoutOn")
}

func (r *civRig) stopScopeReadout() error {
	return r.setCmd("scopeReadoutOff")
}

// readSpectrum collects one sweep. The first request turns the scope and its
// readout on and asks for data; later ones read the stream the rig keeps
// sending. errScopeIncomplete and errScopeMalformed leave the sweep empty
// and are not fatal to the connection.
func (r *civRig) readSpectrum(first bool) (scopeSweep, error) {
	if first {
		if err := r.setCmd("scopeOn"); err != nil {
			return scopeSweep{}, err
		}
		if err := r.startScopeReadout(); err != nil {
			return scopeSweep{}, err
		}
		pkt, err := prepPacket(r.profile.address, "getScopeData", nil)
		if err != nil {
			return scopeSweep{}, err
		}
		if r.debugPackets {
			r.debugPacket("getScopeData", pkt)
		}
		r.scanner.reset()
		r.pending = nil
		if err := r.st.send(pkt); err != nil {
			return scopeSweep{}, fmt.Errorf("getScopeData: %w", err)
		}
	}

	sweep, err := r.collectSweep()
	r.metrics.scopeResult(err)
	if err != nil {
		r.log.Debugw("scope sweep dropped", "error", err)
		return scopeSweep{}, err
	}
	r.log.Debugw("scope sweep", "center", sweep.centerFreq, "span", sweep.span)
	return sweep, nil
}

// collectSweep feeds frames left over from the previous sweep first, then
// reads until the reassembler finishes or runs out of attempts.
func (r *civRig) collectSweep() (scopeSweep, error) {
	r.scope.begin()
	if sweep, done, err := r.feedPending(); done || err != nil {
		return sweep, err
	}
	for {
		if err := r.scope.attempt(); err != nil {
			return scopeSweep{}, err
		}
		d, err := r.st.readAttempt()
		if err != nil {
			r.scope.abort()
			return scopeSweep{}, fmt.Errorf("scope data: %w", err)
		}
		if r.onScopeRead != nil && len(d) > 0 {
			r.onScopeRead(d)
		}
		frames := r.scanner.feed(d)
		if r.debugPackets {
			for _, f := range frames {
				r.debugFrame("received", f)
			}
		}
		r.pending = append(r.pending, frames...)
		if sweep, done, err := r.feedPending(); done || err != nil {
			return sweep, err
		}
	}
}

// feedPending hands queued frames to the reassembler in order. Frames after
// the one that ends the session stay queued for the next sweep.
func (r *civRig) feedPending() (sweep scopeSweep, done bool, err error) {
	for len(r.pending) > 0 {
		f := r.pending[0]
		r.pending = r.pending[1:]
		if done, err = r.scope.feed(f); err != nil {
			return scopeSweep{}, false, err
		}
		if done {
			sweep, _ = r.scope.result()
			return sweep, true, nil
		}
	}
	r.pending = nil
	return scopeSweep{}, false, nil
}

func (r *civRig) wakeUpPreamble() []byte {
	n := wakeUpPreambleLen
	if r.profile.maxBaud > wakeUpPreambleBaud {
		n = wakeUpPreambleLen * r.profile.maxBaud / wakeUpPreambleBaud
	}
	return bytes.Repeat([]byte{civPreambleByte}, n)
}

// powerOn does not work over the USB port of most rigs, only over the CI-V jack.
func (r *civRig) powerOn() error {
	r.log.Infow("turning on rig", "model", r.profile.model)
	if err := r.st.send(r.wakeUpPreamble()); err != nil {
		return fmt.Errorf("powerOn: %w", err)
	}
	return r.setCmd("powerOn")
}

func (r *civRig) powerOff() error {
	r.log.Infow("shutting down rig", "model", r.profile.model)
	return r.setCmd("powerOff")
}

func (r *civRig) close() error {
	return r.st.close()
}

func (r *civRig) deviceName(addr byte) string {
	switch addr {
	case r.profile.address:
		return "[RADIO]"
	case hostAddress:
		return "[CONTROLLER]"
	}
	return fmt.Sprintf("[UNKNOWN DEVICE: %02x]", addr)
}

func (r *civRig) debugPacket(command string, pkt []byte) {
	if len(pkt) < 6 {
		r.log.Debugf("'%v' [% x]", command, pkt)
		return
	}
	r.log.Debugf("'%v' [% x]  to %s <= from %s cmd: [%02x]  payload [% x]", command, pkt,
		r.deviceName(pkt[2]), r.deviceName(pkt[3]), pkt[4], pkt[5:len(pkt)-1])
}

func (r *civRig) debugFrame(what string, f civFrame) {
	r.log.Debugf("'%v' to %s <= from %s cmd: [% x]  payload [% x]", what,
		r.deviceName(f.dst), r.deviceName(f.src), f.cmd, f.payload)
}
