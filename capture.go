package main

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
)

// captureLines writes every read attempt as one line of hex, the format
// replayCapture reads back.
func captureLines(w io.Writer) func(d []byte) {
	return func(d []byte) {
		if _, err := fmt.Fprintln(w, hex.EncodeToString(d)); err != nil {
			log.Error("can't write capture: ", err)
		}
	}
}

// replayCapture runs a hex capture through the scanner and the scope
// reassembler, one line per read attempt. emit is called for every finished
// session: a sweep, or errScopeIncomplete/errScopeMalformed. Empty lines and
// lines starting with # are skipped.
func replayCapture(r io.Reader, budget int, emit func(sweep scopeSweep, err error)) error {
	var scanner civScanner
	reassembler := newScopeReassembler(budget)
	reassembler.begin()

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNr := 0
	for sc.Scan() {
		lineNr++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if err := reassembler.attempt(); err != nil {
			emit(scopeSweep{}, err)
			reassembler.begin()
			_ = reassembler.attempt()
		}

		frames, err := scanner.feedHex(line)
		if err != nil {
			return fmt.Errorf("capture line %d: %w", lineNr, err)
		}
		for _, f := range frames {
			done, err := reassembler.feed(f)
			if err != nil {
				emit(scopeSweep{}, err)
				reassembler.begin()
				continue
			}
			if done {
				sweep, _ := reassembler.result()
				emit(sweep, nil)
				reassembler.begin()
			}
		}
	}
	return sc.Err()
}
