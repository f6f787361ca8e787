// Package config loads the CI's two JSON configuration documents and an
// optional DH-alias YAML file. None are required to be present; sensible
// defaults (spec.md §6) apply when absent. The multi-path search list is
// grounded on the teacher's deviceid.go, which tries a list of candidate
// paths for tocalls.yaml until one opens.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// CIConfig is the core's own tuning: listen address, beacon interval,
// DH registry capacity, per-relay queue/buffer sizing.
type CIConfig struct {
	ListenAddr       string `json:"listen_addr"`
	BeaconAddr       string `json:"beacon_addr"`
	BeaconIntervalMS uint64 `json:"beacon_interval_ms"`
	MaxDataHandlers  int    `json:"max_data_handlers"`
	BufferSize       int    `json:"buffer_size"`
}

// DefaultCIConfig matches spec.md §6's defaults exactly.
func DefaultCIConfig() CIConfig {
	return CIConfig{
		ListenAddr:       "0.0.0.0:5000",
		BeaconAddr:       "localhost:5550",
		BeaconIntervalMS: 1000,
		MaxDataHandlers:  8,
		BufferSize:       4096,
	}
}

// BeaconInterval is BeaconIntervalMS as a time.Duration.
func (c CIConfig) BeaconInterval() time.Duration {
	return time.Duration(c.BeaconIntervalMS) * time.Millisecond
}

// DHPreConfig is one entry of the payload-config's DH array: a DH the CI
// registers (state Created) at boot; it is activated by the first
// matching StartDH, which supplies the OC peer address.
type DHPreConfig struct {
	DHId int    `json:"dh_id"`
	Type string `json:"type"` // "network" | "device"
	Name string `json:"name"`
	Baud int    `json:"baud,omitempty"`
}

// PayloadConfig is the array-of-DH-precfgs document.
type PayloadConfig struct {
	DataHandlers []DHPreConfig `json:"data_handlers"`
}

// searchPaths mirrors deviceid.go's search_locations: try the working
// directory, then a couple of installed-package locations, in order.
func searchPaths(filename string) []string {
	return []string{
		filename,
		"etc/" + filename,
		"/etc/tcs/" + filename,
		"/usr/local/share/tcs/" + filename,
	}
}

func openFirst(paths []string) (*os.File, string) {
	for _, p := range paths {
		f, err := os.Open(p)
		if err == nil {
			return f, p
		}
	}

	return nil, ""
}

// LoadCIConfig tries each candidate path for filename in turn and parses
// the first one it can open; if none open, DefaultCIConfig is returned
// with no error, per spec.md §6 ("must not require either to be
// present").
func LoadCIConfig(filename string) (CIConfig, error) {
	cfg := DefaultCIConfig()

	f, _ := openFirst(searchPaths(filename))
	if f == nil {
		return cfg, nil
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return CIConfig{}, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	return cfg, nil
}

// LoadPayloadConfig is LoadCIConfig's sibling for the DH pre-config
// document; absence yields an empty PayloadConfig, not an error.
func LoadPayloadConfig(filename string) (PayloadConfig, error) {
	var cfg PayloadConfig

	f, _ := openFirst(searchPaths(filename))
	if f == nil {
		return cfg, nil
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&cfg); err != nil {
		return PayloadConfig{}, fmt.Errorf("config: parse %s: %w", filename, err)
	}

	return cfg, nil
}
