package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.bug.st/serial"
)

func getAboutStr() string {
	return "civmon - ICOM CI-V rig monitor and spectrum scope reader"
}

func main() {
	parseArgs()
	log.Init()

	exitCode := run()
	log.Sync()
	os.Exit(exitCode)
}

func run() int {
	if listPorts {
		return runListPorts()
	}
	if replayFile != "" {
		return runReplay()
	}

	profiles := newRigProfileTable()
	if profilesFile != "" {
		if err := profiles.mergeFile(profilesFile); err != nil {
			log.Error(err)
			return 1
		}
	}
	profile, known := profiles.profileFor(rigModel)
	if !known {
		log.Error("unknown rig model ", rigModel, " (known: ", strings.Join(profiles.models(), ", "),
			"), using CI-V address ", fmt.Sprintf("%#02x", profile.address))
	}
	baud := profile.maxBaud
	if baudRate > 0 {
		baud = baudRate
	}

	var metrics *civMetrics
	if metricsPort > 0 {
		reg := newMetricsRegistry()
		metrics = newCIVMetrics(reg)
		srv := serveMetrics(reg, metricsPort)
		defer srv.Close()
	}

	port, err := openSerialPort(serialPortName, baud, readTimeout)
	if err != nil {
		log.Error(err)
		return 1
	}

	cfg := rigConfig{
		profile:      profile,
		port:         port,
		log:          log.Named("civ"),
		metrics:      metrics,
		maxReads:     maxReads,
		debugPackets: debugPackets,
	}
	if captureFile != "" {
		f, err := os.OpenFile(captureFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			log.Error("can't open capture file: ", err)
			_ = port.Close()
			return 1
		}
		defer f.Close()
		cfg.onScopeRead = captureLines(f)
	}
	rig := newCIVRig(cfg)
	defer rig.close()

	log.Print("using ", profile.model, " on ", serialPortName, " at ", baud, " baud, CI-V address ",
		fmt.Sprintf("%#02x", profile.address))

	switch {
	case powerOnRig:
		err = rig.powerOn()
	case powerOffRig:
		err = rig.powerOff()
	default:
		return monitor(rig)
	}
	if err != nil {
		log.Error(err)
		return 1
	}
	return 0
}

func pollRigInfo(rig *civRig) error {
	st, err := rig.readState()
	if err != nil {
		return err
	}
	statusLog.reportState(st)
	return nil
}

// monitor polls the rig until interrupted. All rig access happens on this
// goroutine; the scope readout is paused while rig info is read, as the
// stream would bury the responses.
func monitor(rig *civRig) int {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigs)

	statusLog.startPeriodicPrint()
	defer statusLog.stopPeriodicPrint()

	if err := rig.stopScopeReadout(); err != nil && !errors.Is(err, errCommandRejected) {
		log.Error(err)
		return 1
	}
	if err := pollRigInfo(rig); err != nil {
		log.Error(err)
		return 1
	}
	lastInfo := time.Now()
	scopeFirst := true
	scope := streamScope

	for {
		if !scope {
			select {
			case <-sigs:
				log.Print("exiting")
				return 0
			case <-time.After(pollInterval):
			}
			if err := pollRigInfo(rig); err != nil {
				log.Error(err)
				return 1
			}
			continue
		}

		select {
		case <-sigs:
			log.Print("exiting")
			if err := rig.stopScopeReadout(); err != nil {
				log.Error(err)
			}
			return 0
		default:
		}

		if time.Since(lastInfo) >= pollInterval {
			if !scopeFirst {
				if err := rig.stopScopeReadout(); err != nil && !errors.Is(err, errCommandRejected) {
					log.Error(err)
					return 1
				}
			}
			if err := pollRigInfo(rig); err != nil {
				log.Error(err)
				return 1
			}
			lastInfo = time.Now()
			scopeFirst = true
		}

		sweep, err := rig.readSpectrum(scopeFirst)
		switch {
		case err == nil:
			scopeFirst = false
			statusLog.reportSweep(sweep)
		case errors.Is(err, errScopeIncomplete), errors.Is(err, errScopeMalformed):
			scopeFirst = true
			statusLog.reportSweepDropped()
		case errors.Is(err, errCommandRejected):
			log.Error("scope not available: ", err)
			scope = false
		default:
			log.Error(err)
			return 1
		}
	}
}

func runListPorts() int {
	ports, err := serial.GetPortsList()
	if err != nil {
		log.Error(err)
		return 1
	}
	if len(ports) == 0 {
		log.Print("no serial ports found")
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return 0
}

func runReplay() int {
	f, err := os.Open(replayFile)
	if err != nil {
		log.Error(err)
		return 1
	}
	defer f.Close()

	var sweeps, dropped int
	err = replayCapture(f, maxReads, func(sweep scopeSweep, err error) {
		if err != nil {
			dropped++
			log.Print("sweep dropped: ", err)
			return
		}
		sweeps++
		from, to := sweep.freqRange()
		idx, peak := sweep.peak()
		fmt.Printf("sweep %d: %.6f-%.6f MHz, peak %d at sample %d\n%s\n", sweeps,
			float64(from)/1000000, float64(to)/1000000, peak, idx, sparkline(sweep.amplitudes, 95))
	})
	if err != nil {
		log.Error(err)
		return 1
	}
	log.Print("replayed ", sweeps, " sweeps, ", dropped, " dropped")
	return 0
}
