package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"golang.org/x/crypto/ssh/terminal"
)

// amplitudes of the IC-7300 scope run from 0 to 0xa0
const scopeFullScale = 0xa0

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

type statusLogData struct {
	line1 string
	line2 string
	line3 string

	frequency uint
	mode      string
	vd        string

	scopeCenter     uint
	scopeSpan       uint
	scopePeakFreq   uint
	scopePeak       int
	scopeSpark      string
	sweeps          int
	sweepsDropped   int
	lastSweepFailed bool

	startTime time.Time
}

type statusLogStruct struct {
	ticker           *time.Ticker
	stopChan         chan bool
	stopFinishedChan chan bool
	mutex            sync.Mutex
	realtime         bool

	preGenerated struct {
		freqColor    *color.Color
		modeColor    *color.Color
		droppedColor *color.Color
		scopeColor   *color.Color
	}

	data *statusLogData
}

type termAspects struct {
	cols        int
	rows        int
	cursorUp    string
	cursorDown  string
	eraseLine   string
	eraseScreen string
}

var statusLog statusLogStruct
var termDetail = termAspects{
	cols:        0,
	rows:        0,
	cursorUp:    fmt.Sprintf("%c[1A", 0x1b),
	cursorDown:  fmt.Sprintf("%c[1B", 0x1b),
	eraseLine:   fmt.Sprintf("%c[2K", 0x1b),
	eraseScreen: fmt.Sprintf("%c[2J", 0x1b),
}

func (s *statusLogStruct) reportState(st decodedRigState) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.data == nil {
		return
	}
	if st.frequency != 0 {
		s.data.frequency = st.frequency
	}
	if st.mode != modeNA {
		s.data.mode = st.mode
	}
	if st.supplyVoltageOK {
		s.data.vd = fmt.Sprintf("%.1fV", st.supplyVoltage)
	}
}

func (s *statusLogStruct) reportSweep(sweep scopeSweep) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.data == nil {
		return
	}
	s.data.sweeps++
	s.data.lastSweepFailed = false
	s.data.scopeCenter = sweep.centerFreq
	s.data.scopeSpan = sweep.span
	idx, peak := sweep.peak()
	from, to := sweep.freqRange()
	s.data.scopePeak = peak
	s.data.scopePeakFreq = from + uint(idx)*(to-from)/(scopeSamples-1)
	s.data.scopeSpark = sparkline(sweep.amplitudes, s.sparkWidth())
}

func (s *statusLogStruct) reportSweepDropped() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.data == nil {
		return
	}
	s.data.sweepsDropped++
	s.data.lastSweepFailed = true
}

func (s *statusLogStruct) sparkWidth() int {
	w := termDetail.cols - 30
	if w < 10 {
		w = 10
	}
	if w > scopeSamples {
		w = scopeSamples
	}
	return w
}

// sparkline squeezes the amplitudes into width columns, keeping the maximum
// of each column so narrow signals stay visible.
func sparkline(amplitudes []int, width int) string {
	if len(amplitudes) == 0 || width <= 0 {
		return ""
	}
	var b strings.Builder
	for col := 0; col < width; col++ {
		from := col * len(amplitudes) / width
		to := (col + 1) * len(amplitudes) / width
		if to <= from {
			to = from + 1
		}
		m := 0
		for _, a := range amplitudes[from:to] {
			if a > m {
				m = a
			}
		}
		if m > scopeFullScale {
			m = scopeFullScale
		}
		b.WriteRune(sparkBlocks[m*(len(sparkBlocks)-1)/scopeFullScale])
	}
	return b.String()
}

// erases the terminal line under the cursor
func (s *statusLogStruct) clearStatusLine() {
	fmt.Print(termDetail.eraseLine)
}

// in a terminal the three status lines are redrawn in place, otherwise only
// the summary line goes to the log
func (s *statusLogStruct) print() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.realtime {
		fmt.Print(s.redraw())
	} else {
		log.PrintStatusLog(s.data.line1)
	}
}

// redraw erases and writes the three status lines, leaving the cursor on the
// first one. The lines are written as is, never used as a format.
func (s *statusLogStruct) redraw() string {
	var b strings.Builder
	for _, l := range []string{s.data.line1 + "\n", s.data.line2 + "\n", s.data.line3} {
		b.WriteString(termDetail.eraseLine)
		b.WriteString(l)
	}
	b.WriteString(termDetail.cursorUp)
	b.WriteString(termDetail.cursorUp)
	return b.String()
}

// right-justifies str in a realtime display, log lines stay unpadded
func (s *statusLogStruct) padLeft(str string, length int) string {
	if !s.realtime {
		return str
	}
	if length-len(str) > 0 {
		str = strings.Repeat(" ", length-len(str)) + str
	}
	return str
}

func (s *statusLogStruct) update() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var (
		modeStr    string
		vdStr      string
		droppedStr string
	)

	if s.data.mode != "" {
		modeStr = " " + s.preGenerated.modeColor.Sprint(" ", s.data.mode, " ")
	}
	if s.data.vd != "" {
		vdStr = " " + s.data.vd
	}
	freqStr := s.preGenerated.freqColor.Sprint(" ", s.padLeft(fmt.Sprintf("%.6f", float64(s.data.frequency)/1000000), 11), " MHz ")

	droppedStr = "0"
	if s.data.sweepsDropped > 0 {
		droppedStr = s.preGenerated.droppedColor.Sprint(" ", s.data.sweepsDropped, " ")
	}
	s.data.line1 = fmt.Sprint(freqStr, modeStr, vdStr,
		"  sweeps ", s.data.sweeps, " dropped ", droppedStr,
		"  - uptime: ", s.padLeft(fmt.Sprint(time.Since(s.data.startTime).Round(time.Second)), 6))

	if s.data.sweeps > 0 {
		s.data.line2 = fmt.Sprintf("scope %.6f MHz ±%.1f kHz  peak %d @ %.6f MHz",
			float64(s.data.scopeCenter)/1000000, float64(s.data.scopeSpan)/1000,
			s.data.scopePeak, float64(s.data.scopePeakFreq)/1000000)
		if s.data.lastSweepFailed {
			s.data.line2 += s.preGenerated.droppedColor.Sprint(" STALE ")
		}
		s.data.line3 = s.preGenerated.scopeColor.Sprint(s.data.scopeSpark) + "\r"
	} else {
		s.data.line2 = "scope -"
		s.data.line3 = "\r"
	}

	if s.realtime {
		t := time.Now().Format("2006-01-02T15:04:05 Z0700")
		s.data.line1 = fmt.Sprint(t, " ", s.data.line1)
		s.data.line2 = fmt.Sprint(t, " ", s.data.line2)
	}
}

// redraws on every tick until stopPeriodicPrint
func (s *statusLogStruct) loop() {
	for {
		select {
		case <-s.ticker.C:
			s.update()
			s.print()
		case <-s.stopChan:
			s.stopFinishedChan <- true
			return
		}
	}
}

// true while the status lines are drawn in place on a terminal
func (s *statusLogStruct) isRealtime() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.ticker != nil && s.realtime
}

func (s *statusLogStruct) isActive() bool {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.ticker != nil
}

// startPeriodicPrint resets the counters and starts redrawing every statusLogInterval.
func (s *statusLogStruct) startPeriodicPrint() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.initIfNeeded()

	s.data = &statusLogData{
		startTime: time.Now(),
	}

	s.stopChan = make(chan bool)
	s.stopFinishedChan = make(chan bool)
	s.ticker = time.NewTicker(statusLogInterval)
	go s.loop()
}

// stopPeriodicPrint waits for the redraw goroutine to exit and blanks the status lines.
func (s *statusLogStruct) stopPeriodicPrint() {
	if !s.isActive() {
		return
	}
	s.mutex.Lock()
	s.ticker.Stop()
	s.ticker = nil
	s.mutex.Unlock()

	s.stopChan <- true
	<-s.stopFinishedChan

	if s.realtime {
		statusRows := 3
		for i := 0; i < statusRows; i++ {
			s.clearStatusLine()
			fmt.Println()
		}
	}
}

// initIfNeeded picks in place redraw on a terminal, plain log lines otherwise,
// and sizes the sparkline to the terminal.
func (s *statusLogStruct) initIfNeeded() {
	if s.data != nil {
		return
	}

	if quietLog || !isatty.IsTerminal(os.Stdout.Fd()) {
		if statusLogInterval < time.Second {
			statusLogInterval = time.Second
		}
	} else {
		s.realtime = true
	}

	cols, rows, err := terminal.GetSize(int(os.Stdout.Fd()))
	if err == nil {
		termDetail.cols = cols
		termDetail.rows = rows
	} else {
		// if redirecting to a file these are zeros
		termDetail.cols = 120
		termDetail.rows = 20
	}

	if s.realtime && termDetail.rows > 10 {
		vertWhitespace := strings.Repeat(termDetail.cursorDown, termDetail.rows-10)
		fmt.Printf("%v%v", termDetail.eraseScreen, vertWhitespace)
	}

	s.preGenerated.freqColor = color.New(color.FgHiWhite)
	s.preGenerated.freqColor.Add(color.BgBlue)
	s.preGenerated.modeColor = color.New(color.FgHiWhite)
	s.preGenerated.modeColor.Add(color.BgGreen)
	s.preGenerated.droppedColor = color.New(color.FgHiWhite)
	s.preGenerated.droppedColor.Add(color.BgRed)
	s.preGenerated.scopeColor = color.New(color.FgHiYellow)
}
