package main

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSparkline(t *testing.T) {
	assert.Equal(t, "", sparkline(nil, 10))
	assert.Equal(t, "", sparkline([]int{1, 2}, 0))
	assert.Equal(t, "▁▄█", sparkline([]int{0, 0x50, 0xa0}, 3))
	// over full scale is clamped
	assert.Equal(t, "█", sparkline([]int{0xff}, 1))
	// the peak of each column survives
	assert.Equal(t, "▁█", sparkline([]int{0, 0, 0, 0, 0, 0xa0, 0, 0}, 2))
	// wider than the data repeats samples
	assert.Equal(t, "▁▁█", sparkline([]int{0, 0xa0}, 3))

	s := sparkline(make([]int, scopeSamples), 80)
	assert.Equal(t, 80, utf8.RuneCountInString(s))
}

func TestStatusRedrawKeepsPercent(t *testing.T) {
	s := statusLogStruct{data: &statusLogData{
		line1: "7.074000 MHz 100%",
		line2: "scope %d",
		line3: "%v%s\r",
	}}
	want := termDetail.eraseLine + "7.074000 MHz 100%\n" +
		termDetail.eraseLine + "scope %d\n" +
		termDetail.eraseLine + "%v%s\r" +
		termDetail.cursorUp + termDetail.cursorUp
	assert.Equal(t, want, s.redraw())
}

func TestStatusReports(t *testing.T) {
	s := statusLogStruct{data: &statusLogData{}}

	s.reportState(decodedRigState{frequency: 7074000, mode: "USB", supplyVoltage: 13.8, supplyVoltageOK: true})
	// undecodable values keep the last good ones
	s.reportState(decodedRigState{mode: modeNA})
	assert.Equal(t, uint(7074000), s.data.frequency)
	assert.Equal(t, "USB", s.data.mode)
	assert.Equal(t, "13.8V", s.data.vd)

	amplitudes := make([]int, scopeSamples)
	amplitudes[scopeSamples-1] = 0x80
	s.reportSweep(scopeSweep{amplitudes: amplitudes, centerFreq: 7074000, span: 2500})
	assert.Equal(t, 1, s.data.sweeps)
	assert.Equal(t, 0x80, s.data.scopePeak)
	assert.Equal(t, uint(7076500), s.data.scopePeakFreq)
	assert.False(t, s.data.lastSweepFailed)

	s.reportSweepDropped()
	assert.Equal(t, 1, s.data.sweepsDropped)
	assert.True(t, s.data.lastSweepFailed)

	var idle statusLogStruct
	idle.reportSweepDropped()
	assert.Nil(t, idle.data)
}
