// Package params holds the core's configuration record: the handful of
// values an external CLI/TOML loader (out of scope for this core) passes
// in at startup.
package params

import (
	"bufio"
	"os"
	"reflect"

	"github.com/naoina/toml"
)

// Config is the record the host launcher supplies. LoadTOML is the full
// extent of configuration handling this core owns; flag parsing and an
// interactive loader remain the external collaborator's job.
type Config struct {
	// Wire protocol listen ports (see spec §6).
	CmdPort      int `toml:"cmd_port"`
	DMAReadPort  int `toml:"dma_read_port"`
	DMAWritePort int `toml:"dma_write_port"`

	// Bank geometry.
	BankCount int `toml:"bank_count"`
	BankDepth int `toml:"bank_depth"`

	// ROB capacity (ring size C).
	ROBCapacity int `toml:"rob_capacity"`

	// Per-unit latency budgets, supplementing spec.md's single "transfer
	// latency" with the original Rust source's per-phase fields (see
	// SPEC_FULL.md §6).
	LoaderLatencyPerWord  float64 `toml:"loader_latency_per_word"`
	StorerLatencyPerWord  float64 `toml:"storer_latency_per_word"`
	VectorReadLatency     float64 `toml:"vector_read_latency"`
	VectorComputeLatency  float64 `toml:"vector_compute_latency"`
	VectorWriteLatency    float64 `toml:"vector_write_latency"`
	SystolicBaseLatency   float64 `toml:"systolic_base_latency"`
	SystolicAlphaPerWord  float64 `toml:"systolic_alpha_per_word"`

	TraceFile string `toml:"trace_file"` // passed through, unused by the core
}

// Default returns a Config with the geometry and latencies used across
// the test scenarios in spec.md §8.
func Default() Config {
	return Config{
		CmdPort:              40000,
		DMAReadPort:          40001,
		DMAWritePort:         40002,
		BankCount:            8,
		BankDepth:            1024,
		ROBCapacity:          16,
		LoaderLatencyPerWord: 1,
		StorerLatencyPerWord: 1,
		VectorReadLatency:    2,
		VectorComputeLatency: 4,
		VectorWriteLatency:   2,
		SystolicBaseLatency:  2,
		SystolicAlphaPerWord: 0.5,
	}
}

// tomlSettings matches field names to TOML keys verbatim, mirroring
// cmd/gprobe/config.go's tomlSettings.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
}

// LoadTOML reads a Config from a TOML file, starting from Default() so an
// abbreviated file only needs to override what it changes.
func LoadTOML(path string) (Config, error) {
	cfg := Default()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	if err := tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}
