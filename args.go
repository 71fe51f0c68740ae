package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pborman/getopt"
)

var (
	verboseLog        bool
	quietLog          bool
	serialPortName    string
	rigModel          string
	profilesFile      string
	baudRate          int
	pollInterval      time.Duration
	streamScope       bool
	readTimeout       time.Duration
	maxReads          int
	debugPackets      bool
	logFile           string
	metricsPort       uint16
	captureFile       string
	replayFile        string
	listPorts         bool
	powerOnRig        bool
	powerOffRig       bool
	statusLogInterval time.Duration
)

func parseArgs() {
	h := getopt.BoolLong("help", 'h', "display help")
	v := getopt.BoolLong("verbose", 'v', "Enable verbose (debug) logging")
	q := getopt.BoolLong("quiet", 'q', "Disable logging")
	p := getopt.StringLong("port", 'p', "", "Serial port of the rig")
	r := getopt.StringLong("rig", 'r', defaultRigModel, "Rig model")
	pf := getopt.StringLong("profiles", 'P', "", "YAML file with additional rig profiles")
	b := getopt.IntLong("baud", 'b', 0, "Baud rate, defaults to the rig's maximum")
	i := getopt.Uint16Long("interval", 'i', 3000, "Rig info poll interval in milliseconds")
	s := getopt.BoolLong("scope", 's', "Stream spectrum scope data")
	t := getopt.Uint16Long("read-timeout", 't', uint16(defaultReadTimeout/time.Millisecond), "Serial read timeout in milliseconds")
	n := getopt.IntLong("max-reads", 'n', defaultMaxReads, "Read attempts per request")
	dp := getopt.BoolLong("debug-packets", 'D', "Show CI-V packets for debugging")
	l := getopt.StringLong("log-file", 'l', "", "Also log to this file (rotated)")
	m := getopt.Uint16Long("metrics-port", 'm', 0, "Serve Prometheus metrics on this TCP port, 0 disables")
	c := getopt.StringLong("capture", 'c', "", "Append raw scope reads as hex lines to this file")
	rp := getopt.StringLong("replay", 'R', "", "Decode scope sweeps from a capture file instead of a rig")
	lp := getopt.BoolLong("list-ports", 'L', "List serial ports and exit")
	on := getopt.BoolLong("power-on", 0, "Turn the rig on and exit")
	off := getopt.BoolLong("power-off", 0, "Turn the rig off and exit")
	si := getopt.Uint16Long("log-interval", 'I', 150, "Status bar/log interval in milliseconds")

	getopt.Parse()

	if *h || (*q && *v) || (*on && *off) || (*p == "" && *rp == "" && !*lp) {
		fmt.Println(getAboutStr())
		getopt.Usage()
		os.Exit(1)
	}

	if *n <= 0 {
		fmt.Println("invalid max reads:", *n)
		os.Exit(1)
	}

	verboseLog = *v
	quietLog = *q
	serialPortName = *p
	rigModel = *r
	profilesFile = *pf
	baudRate = *b
	pollInterval = time.Duration(*i) * time.Millisecond
	streamScope = *s
	readTimeout = time.Duration(*t) * time.Millisecond
	maxReads = *n
	debugPackets = *dp
	logFile = *l
	metricsPort = *m
	captureFile = *c
	replayFile = *rp
	listPorts = *lp
	powerOnRig = *on
	powerOffRig = *off
	statusLogInterval = time.Duration(*si) * time.Millisecond
}
