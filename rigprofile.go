package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

const defaultRigModel = "IC-7300"

type rigProfile struct {
	model   string
	address byte // CI-V bus address of the transceiver
	maxBaud int
}

// Used when the model name is unknown. Address 0x00 is the host address, so a
// rig behind this profile will not answer; this is a misconfiguration the
// caller has to report.
var defaultRigProfile = rigProfile{model: "unknown", address: 0x00, maxBaud: 19200}

type rigProfileTable map[string]rigProfile

func newRigProfileTable() rigProfileTable {
	return rigProfileTable{
		"IC-7300": {model: "IC-7300", address: 0x94, maxBaud: 115200},
		"ID-51":   {model: "ID-51", address: 0x86, maxBaud: 19200},
		"IC-R6":   {model: "IC-R6", address: 0x7e, maxBaud: 19200},
	}
}

// profileFor never fails. known is false when the default profile was returned.
func (t rigProfileTable) profileFor(model string) (p rigProfile, known bool) {
	if p, known = t[model]; known {
		return p, true
	}
	return defaultRigProfile, false
}

func (t rigProfileTable) models() []string {
	var m []string
	for k := range t {
		m = append(m, k)
	}
	sort.Strings(m)
	return m
}

type rigProfileFile struct {
	Rigs []struct {
		Model   string `yaml:"model"`
		Address int    `yaml:"address"`
		Baud    int    `yaml:"baud"`
	} `yaml:"rigs"`
}

// merge adds or replaces profiles from a YAML document like:
//
//	rigs:
//	  - model: IC-705
//	    address: 0xa4
//	    baud: 115200
func (t rigProfileTable) merge(r io.Reader) error {
	var f rigProfileFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return fmt.Errorf("can't parse rig profiles: %w", err)
	}
	for i, e := range f.Rigs {
		if e.Model == "" {
			return fmt.Errorf("rig profile #%d: missing model", i+1)
		}
		if e.Address < 0 || e.Address > 0xff {
			return fmt.Errorf("rig profile %s: invalid CI-V address %#x", e.Model, e.Address)
		}
		baud := e.Baud
		if baud <= 0 {
			baud = defaultRigProfile.maxBaud
		}
		t[e.Model] = rigProfile{model: e.Model, address: byte(e.Address), maxBaud: baud}
	}
	return nil
}

func (t rigProfileTable) mergeFile(filename string) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer f.Close()
	return t.merge(f)
}
