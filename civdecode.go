package main

import "encoding/hex"

const (
	freqDataLen = 5 // bytes of reversed BCD
	spanDataLen = 6
)

type civOperatingMode struct {
	name string
	code int
}

const modeNA = "N/A"

// Indexed by the BCD mode code, so 0x17 on the wire is DV.
var civOperatingModes = []civOperatingMode{
	{name: "LSB", code: 0},
	{name: "USB", code: 1},
	{name: "AM", code: 2},
	{name: "CW", code: 3},
	{name: "RTTY", code: 4},
	{name: "FM", code: 5},
	{name: "Reserved", code: 6},
	{name: "CW-R", code: 7},
	{name: "RTTY-R", code: 8},
	{name: modeNA, code: 9},
	{name: modeNA, code: 10},
	{name: modeNA, code: 11},
	{name: modeNA, code: 12},
	{name: modeNA, code: 13},
	{name: modeNA, code: 14},
	{name: modeNA, code: 15},
	{name: modeNA, code: 16},
	{name: "DV", code: 17},
}

const modeNAIdx = 9

func decodeOperatingMode(code int) string {
	if code < 0 || code >= len(civOperatingModes) {
		code = modeNAIdx
	}
	return civOperatingModes[code].name
}

// decodeSupplyVoltage converts the 0-255 Vd meter reading. The conversion is
// piecewise linear: 0-13 covers 0-10V, above that 6V over 228 steps.
func decodeSupplyVoltage(raw int) (volts float64, ok bool) {
	switch {
	case raw < 0 || raw > 255:
		return 0, false
	case raw < 14:
		return 10.0 / 13.0 * float64(raw), true
	default:
		return 6.0/228.0*float64(raw) + 10, true
	}
}

func bcdDigitsValid(bcd []byte) bool {
	for _, b := range bcd {
		if b>>4 > 9 || b&0x0f > 9 {
			return false
		}
	}
	return true
}

// BCDToDec reads big endian BCD, as used by the meter and level commands:
// 01 20 is 120. ok is false on a non-decimal nibble.
func BCDToDec(bcd []byte) (v int, ok bool) {
	if len(bcd) == 0 || !bcdDigitsValid(bcd) {
		return 0, false
	}
	for _, b := range bcd {
		v = v*100 + int(b>>4)*10 + int(b&0x0f)
	}
	return v, true
}

// decodeFreqData reads the 5 byte frequency field, least significant byte
// first. Anything undecodable is 0.
func decodeFreqData(d []byte) (f uint) {
	if len(d) != freqDataLen || !bcdDigitsValid(d) {
		return 0
	}
	for i := len(d) - 1; i >= 0; i-- {
		f = f*100 + uint(d[i]>>4)*10 + uint(d[i]&0x0f)
	}
	return f
}

// decodeFrequency is decodeFreqData for the hex rendering of the field, e.g.
// "0000004501" is 145 MHz.
func decodeFrequency(h string) uint {
	if len(h) != freqDataLen*2 {
		return 0
	}
	d, err := hex.DecodeString(h)
	if err != nil {
		return 0
	}
	return decodeFreqData(d)
}

// NOTE: maybe call this decToBCDByDecade? or BCDDigit?
func getDigit(v uint, decade int) byte {
	for decade > 0 {
		v /= 10
		decade--
	}
	return byte(v % 10)
}

// encodeFreqData is the inverse of decodeFreqData for frequencies below 10 GHz.
func encodeFreqData(f uint) (b [freqDataLen]byte) {
	for i := range b {
		b[i] = getDigit(f, i*2+1)<<4 | getDigit(f, i*2)
	}
	return
}

// decodeSpanData uses nibbles 2 to 5 of the 6 byte span code only. These are
// the hundreds to hundred-thousands of the least significant byte first BCD
// span, which is why the weights are not in digit order. Units, tens and
// spans of 1 MHz or more are dropped.
func decodeSpanData(d []byte) uint {
	if len(d) != spanDataLen || !bcdDigitsValid(d[1:3]) {
		return 0
	}
	d2, d3 := uint(d[1]>>4), uint(d[1]&0x0f)
	d4, d5 := uint(d[2]>>4), uint(d[2]&0x0f)
	return d2*1000 + d3*100 + d4*100000 + d5*10000
}

func decodeSpan(h string) uint {
	if len(h) != spanDataLen*2 {
		return 0
	}
	d, err := hex.DecodeString(h)
	if err != nil {
		return 0
	}
	return decodeSpanData(d)
}
