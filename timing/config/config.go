// Package config holds the structural and timing parameters of the
// Tomasulo machine model.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// StationRelease selects when a reservation-station slot is handed back.
type StationRelease string

const (
	// ReleaseOnIssue frees the station slot as soon as its instruction
	// enters a functional unit.
	ReleaseOnIssue StationRelease = "issue"

	// ReleaseOnComplete keeps the slot occupied until the instruction
	// finishes: stores at unit completion, everything else when it retires
	// from the bus.
	ReleaseOnComplete StationRelease = "complete"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid machine config")

// MachineConfig describes the sizes and latencies of the scheduler.
type MachineConfig struct {
	// QueueSize is the capacity of the instruction fetch queue. Default: 16.
	QueueSize int `json:"queue_size" yaml:"queue_size"`

	// IntStations is the number of integer reservation stations. Default: 5.
	IntStations int `json:"int_stations" yaml:"int_stations"`

	// FPStations is the number of floating-point reservation stations.
	// Default: 3.
	FPStations int `json:"fp_stations" yaml:"fp_stations"`

	// IntUnits is the number of integer functional units. Default: 3.
	IntUnits int `json:"int_units" yaml:"int_units"`

	// FPUnits is the number of floating-point functional units. Default: 1.
	FPUnits int `json:"fp_units" yaml:"fp_units"`

	// IntLatency is the execution latency of the integer units, shared by
	// integer compute, loads and stores. Default: 5 cycles.
	IntLatency uint64 `json:"int_latency" yaml:"int_latency"`

	// FPLatency is the execution latency of the FP units. Default: 7 cycles.
	FPLatency uint64 `json:"fp_latency" yaml:"fp_latency"`

	// NumRegs is the number of architectural registers in the producer map.
	// Default: 65 (X0-X30, XZR, V0-V31, NZCV).
	NumRegs int `json:"num_regs" yaml:"num_regs"`

	// ForwardOnBroadcast lets a waiting instruction issue in the same cycle
	// its last producer is on the bus. When false it waits for the bus to
	// retire, one cycle later. Default: true.
	ForwardOnBroadcast bool `json:"forward_on_broadcast" yaml:"forward_on_broadcast"`

	// StationRelease selects when station slots are freed. Default: "issue".
	StationRelease StationRelease `json:"station_release" yaml:"station_release"`

	// CheckInvariants verifies every holding structure after each cycle and
	// panics on the first violation. Default: false.
	CheckInvariants bool `json:"check_invariants" yaml:"check_invariants"`

	// MaxCycles bounds a run; 0 means unbounded. Default: 0.
	MaxCycles uint64 `json:"max_cycles" yaml:"max_cycles"`
}

// DefaultMachineConfig returns the reference machine: a 16-entry queue,
// 5 integer and 3 FP stations, 3 integer units of latency 5 and one FP unit
// of latency 7.
func DefaultMachineConfig() *MachineConfig {
	return &MachineConfig{
		QueueSize:          16,
		IntStations:        5,
		FPStations:         3,
		IntUnits:           3,
		FPUnits:            1,
		IntLatency:         5,
		FPLatency:          7,
		NumRegs:            65,
		ForwardOnBroadcast: true,
		StationRelease:     ReleaseOnIssue,
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// LoadConfig loads a MachineConfig from a JSON or YAML file. Fields missing
// from the file keep their default values.
func LoadConfig(path string) (*MachineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read machine config file: %w", err)
	}

	config := DefaultMachineConfig()
	if isYAML(path) {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(config); err != nil {
			return nil, fmt.Errorf("failed to parse machine config: %w", err)
		}
	} else if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse machine config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Marshal encodes the config as YAML or indented JSON.
func (c *MachineConfig) Marshal(asYAML bool) ([]byte, error) {
	if asYAML {
		return yaml.Marshal(c)
	}
	return json.MarshalIndent(c, "", "  ")
}

// SaveConfig writes a MachineConfig to a file, as YAML when the extension
// is .yaml or .yml and as JSON otherwise.
func (c *MachineConfig) SaveConfig(path string) error {
	data, err := c.Marshal(isYAML(path))
	if err != nil {
		return fmt.Errorf("failed to serialize machine config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write machine config file: %w", err)
	}

	return nil
}

// Validate checks that every pool can hold at least one instruction and
// every latency is positive.
func (c *MachineConfig) Validate() error {
	if c.QueueSize <= 0 {
		return fmt.Errorf("%w: queue_size must be > 0", ErrInvalidConfig)
	}
	if c.IntStations <= 0 {
		return fmt.Errorf("%w: int_stations must be > 0", ErrInvalidConfig)
	}
	if c.FPStations <= 0 {
		return fmt.Errorf("%w: fp_stations must be > 0", ErrInvalidConfig)
	}
	if c.IntUnits <= 0 {
		return fmt.Errorf("%w: int_units must be > 0", ErrInvalidConfig)
	}
	if c.FPUnits <= 0 {
		return fmt.Errorf("%w: fp_units must be > 0", ErrInvalidConfig)
	}
	if c.IntLatency == 0 {
		return fmt.Errorf("%w: int_latency must be > 0", ErrInvalidConfig)
	}
	if c.FPLatency == 0 {
		return fmt.Errorf("%w: fp_latency must be > 0", ErrInvalidConfig)
	}
	if c.NumRegs <= 0 || c.NumRegs > 255 {
		return fmt.Errorf("%w: num_regs must be in 1..255", ErrInvalidConfig)
	}
	switch c.StationRelease {
	case ReleaseOnIssue, ReleaseOnComplete:
	default:
		return fmt.Errorf("%w: station_release must be %q or %q, got %q",
			ErrInvalidConfig, ReleaseOnIssue, ReleaseOnComplete, c.StationRelease)
	}
	return nil
}

// Clone returns a copy of the MachineConfig.
func (c *MachineConfig) Clone() *MachineConfig {
	clone := *c
	return &clone
}
