package latency

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/sarchlab/mipsim/insts"
)

// ALUConfig describes one category of execution unit.
type ALUConfig struct {
	// Count is how many units of this category run side by side.
	Count int `json:"count"`

	// Latency is the number of cycles an instruction occupies a unit.
	Latency uint64 `json:"latency"`
}

// TimingConfig holds the execution resources of the multi-ALU pipeline.
type TimingConfig struct {
	// Integer units run integer arithmetic, logic, shifts, branches and
	// address generation. Default: 1 unit, 1 cycle.
	Integer ALUConfig `json:"integer"`

	// FloatAddition units run FP add, subtract, move, negate and compare.
	// Default: 1 unit, 4 cycles.
	FloatAddition ALUConfig `json:"float_addition"`

	// FloatMultiplication units run FP multiply and multiply-add.
	// Default: 1 unit, 5 cycles.
	FloatMultiplication ALUConfig `json:"float_multiplication"`

	// FloatDivision units run FP divide. Default: 1 unit, 12 cycles.
	FloatDivision ALUConfig `json:"float_division"`

	// MemoryLatency is the memory stage occupancy of a load or store that
	// hits. Default: 1 cycle.
	MemoryLatency uint64 `json:"memory_latency"`

	// MissPenalty is added to MemoryLatency when the data cache misses.
	// Default: 10 cycles.
	MissPenalty uint64 `json:"miss_penalty"`
}

// DefaultTimingConfig returns a TimingConfig with one unit per category.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		Integer:             ALUConfig{Count: 1, Latency: 1},
		FloatAddition:       ALUConfig{Count: 1, Latency: 4},
		FloatMultiplication: ALUConfig{Count: 1, Latency: 5},
		FloatDivision:       ALUConfig{Count: 1, Latency: 12},
		MemoryLatency:       1,
		MissPenalty:         10,
	}
}

// ALU returns the configuration of the units of category t.
func (c *TimingConfig) ALU(t insts.ALUType) ALUConfig {
	switch t {
	case insts.ALUFloatAddition:
		return c.FloatAddition
	case insts.ALUFloatMultiplication:
		return c.FloatMultiplication
	case insts.ALUFloatDivision:
		return c.FloatDivision
	default:
		return c.Integer
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their defaults.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read timing config file")
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, errors.Wrap(err, "failed to parse timing config")
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize timing config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write timing config file")
	}

	return nil
}

// Validate checks that every category has at least one unit and that all
// latencies are positive.
func (c *TimingConfig) Validate() error {
	for _, t := range insts.ALUTypes {
		alu := c.ALU(t)
		if alu.Count <= 0 {
			return errors.Errorf("%s count must be > 0", t)
		}
		if alu.Latency == 0 {
			return errors.Errorf("%s latency must be > 0", t)
		}
	}
	if c.MemoryLatency == 0 {
		return errors.New("memory_latency must be > 0")
	}
	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
