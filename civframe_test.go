package main

import (
	"encoding/hex"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeFrame(t *testing.T) {
	pkt, err := encodeFrame(0x94, []byte{0x03}, nil)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfe, 0xfe, 0x94, 0x00, 0x03, 0xfd}, pkt)

	pkt, err = encodeFrame(0x86, []byte{0x27, 0x11}, []byte{0x01})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xfe, 0xfe, 0x86, 0x00, 0x27, 0x11, 0x01, 0xfd}, pkt)

	_, err = encodeFrame(0x94, []byte{0x17}, make([]byte, civMaxPayloadLen+1))
	assert.True(t, errors.Is(err, errPayloadTooLong))
}

func TestPrepPacket(t *testing.T) {
	tests := map[string][]byte{
		"getFreq":         {0xfe, 0xfe, 0x94, 0x00, 0x03, 0xfd},
		"getMode":         {0xfe, 0xfe, 0x94, 0x00, 0x04, 0xfd},
		"getVd":           {0xfe, 0xfe, 0x94, 0x00, 0x15, 0x15, 0xfd},
		"powerOn":         {0xfe, 0xfe, 0x94, 0x00, 0x18, 0x01, 0xfd},
		"powerOff":        {0xfe, 0xfe, 0x94, 0x00, 0x18, 0x00, 0xfd},
		"scopeOn":         {0xfe, 0xfe, 0x94, 0x00, 0x27, 0x10, 0x01, 0xfd},
		"scopeOff":        {0xfe, 0xfe, 0x94, 0x00, 0x27, 0x10, 0x00, 0xfd},
		"scopeReadoutOn":  {0xfe, 0xfe, 0x94, 0x00, 0x27, 0x11, 0x01, 0xfd},
		"scopeReadoutOff": {0xfe, 0xfe, 0x94, 0x00, 0x27, 0x11, 0x00, 0xfd},
		"getScopeData":    {0xfe, 0xfe, 0x94, 0x00, 0x27, 0x00, 0xfd},
	}
	for name, want := range tests {
		pkt, err := prepPacket(0x94, name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, want, pkt, name)
	}

	_, err := prepPacket(0x94, "getGPS", nil)
	assert.Error(t, err)
}

func TestSplitCommand(t *testing.T) {
	tests := []struct {
		body        []byte
		cmd         []byte
		payloadSize int
	}{
		{[]byte{0x03, 0x00, 0x00, 0x00, 0x45, 0x01}, []byte{0x03}, 5},
		{[]byte{0x15, 0x15, 0x01, 0x20}, []byte{0x15, 0x15}, 2},
		{[]byte{0x15, 0x02, 0x01, 0x20}, []byte{0x15}, 3},
		{[]byte{0x27, 0x00, 0x00, 0x01, 0x11}, []byte{0x27, 0x00}, 3},
		{[]byte{0x27, 0x11, 0x01}, []byte{0x27, 0x11, 0x01}, 0},
		{[]byte{0x1a, 0x05}, []byte{0x1a}, 1},
		{[]byte{0xfb}, []byte{0xfb}, 0},
	}
	for _, tt := range tests {
		cmd, payload := civCommands.splitCommand(tt.body)
		assert.Equal(t, tt.cmd, cmd, "% x", tt.body)
		assert.Len(t, payload, tt.payloadSize, "% x", tt.body)
	}
}

func TestScannerConcatenatedFrames(t *testing.T) {
	buf := concat(
		[]byte{0x12, 0x00, 0xfd, 0xfe}, // garbage
		rigFrame(0x03, 0x00, 0x00, 0x00, 0x45, 0x01),
		rigFrame(0x04, 0x01, 0x02),
	)
	var s civScanner
	frames := s.feed(buf)
	require.Len(t, frames, 2)

	assert.True(t, frames[0].is("getFreq"))
	assert.Equal(t, []byte{0x00, 0x00, 0x00, 0x45, 0x01}, frames[0].payload)
	assert.Equal(t, byte(hostAddress), frames[0].dst)
	assert.Equal(t, byte(testRigAddress), frames[0].src)

	assert.True(t, frames[1].is("getMode"))
	assert.Equal(t, []byte{0x01, 0x02}, frames[1].payload)
}

func TestScannerKeepsPartialFrame(t *testing.T) {
	second := rigFrame(0x04, 0x01, 0x02)
	buf := concat(rigFrame(0x03, 0x00, 0x00, 0x00, 0x45, 0x01), second[:4])

	var s civScanner
	frames := s.feed(buf)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].is("getFreq"))

	frames = s.feed(second[4:])
	require.Len(t, frames, 1)
	assert.True(t, frames[0].is("getMode"))
}

func TestScannerSplitPreamble(t *testing.T) {
	f := rigFrame(0x04, 0x05, 0x01)
	var s civScanner
	assert.Empty(t, s.feed(f[:1]))
	frames := s.feed(f[1:])
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{0x05, 0x01}, frames[0].payload)
}

func TestScannerRejectsFramesNotForHost(t *testing.T) {
	echo, err := prepPacket(testRigAddress, "getFreq", nil)
	require.NoError(t, err)
	ownEcho := []byte{0xfe, 0xfe, 0x00, 0x00, 0x03, 0xfd}
	short := []byte{0xfe, 0xfe, 0x00, 0xfd}

	var s civScanner
	frames := s.feed(concat(echo, ownEcho, short, rigFrame(0x03, 0x00, 0x00, 0x00, 0x45, 0x01)))
	require.Len(t, frames, 1)
	assert.True(t, frames[0].is("getFreq"))
	assert.False(t, frames[0].isEcho())
}

func TestScannerResyncsOnUnterminatedFrame(t *testing.T) {
	buf := concat([]byte{0xfe, 0xfe, 0x00, 0x94, 0x03, 0x01}, rigFrame(0x04, 0x01, 0x02))
	frames := parseFrames(t, buf)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].is("getMode"))
}

func TestScannerExtraPreambleBytes(t *testing.T) {
	buf := concat([]byte{0xfe, 0xfe, 0xfe}, rigFrame(0x04, 0x01, 0x02)[2:])
	frames := parseFrames(t, buf)
	require.Len(t, frames, 1)
	assert.True(t, frames[0].is("getMode"))
	assert.Equal(t, byte(testRigAddress), frames[0].src)
}

func TestScannerDropsOverlongGarbage(t *testing.T) {
	var s civScanner
	garbage := append([]byte{0xfe, 0xfe, 0x00, 0x94}, make([]byte, civMaxPendingLen)...)
	assert.Empty(t, s.feed(garbage))
	assert.Empty(t, s.buf)

	frames := s.feed(rigFrame(0x04, 0x01, 0x02))
	assert.Len(t, frames, 1)
}

func TestScannerHexMatchesBinary(t *testing.T) {
	buf := concat(append([][]byte{{0x00, 0x11}}, sweepFrames(145000000, testAmplitudes())...)...)
	buf = append(buf, rigFrame(0x15, 0x15, 0x01, 0x20)...)

	var bin, txt civScanner
	want := bin.feed(buf)
	got, err := txt.feedHex(hex.EncodeToString(buf))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Len(t, got, 12)

	// upper case and whitespace, as pasted from a terminal
	got, err = txt.feedHex("FE FE 00 94 03 00 00 00 45 01 FD\n")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint(145000000), decodeFreqData(got[0].payload))

	_, err = txt.feedHex("fefe0")
	assert.Error(t, err)
}
