// Package genesis loads and validates the runtime-supplied BABE genesis
// configuration: the epoch-0 authority set, randomness seed, threshold
// constant and the epoch/slot geometry.
package genesis

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/geanlabs/babe/epoch"
	"github.com/geanlabs/babe/types"
)

// Config is the immutable genesis consensus configuration. It is supplied
// once, from runtime-exposed state; this package never derives it.
type Config struct {
	SlotDuration uint64 // milliseconds per slot
	EpochLength  uint64 // slots per epoch

	// C1/C2 is the threshold constant c, the expected fraction of slots
	// with a primary claim. 0 < C1/C2 <= 1.
	C1, C2 uint64

	Authorities    types.AuthorityList
	Randomness     types.Randomness
	AllowSecondary bool

	// GenesisSlot is the first slot of epoch 0. Zero means "anchor at the
	// slot of the first block verified against genesis".
	GenesisSlot types.Slot
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.SlotDuration == 0 {
		return errors.New("slot duration must be positive")
	}
	if c.EpochLength == 0 {
		return errors.New("epoch length must be positive")
	}
	if c.C2 == 0 || c.C1 == 0 || c.C1 > c.C2 {
		return fmt.Errorf("threshold constant %d/%d outside (0, 1]", c.C1, c.C2)
	}
	return c.Authorities.Validate()
}

// GenesisDescriptor builds the epoch-0 descriptor.
func (c *Config) GenesisDescriptor() (*epoch.Descriptor, error) {
	return epoch.NewDescriptor(0, c.GenesisSlot, c.Authorities, c.Randomness, c.C1, c.C2, c.AllowSecondary)
}

// configRaw is the intermediate struct for file unmarshaling.
type configRaw struct {
	SlotDuration   uint64         `json:"SLOT_DURATION" yaml:"slot_duration"`
	EpochLength    uint64         `json:"EPOCH_LENGTH" yaml:"epoch_length"`
	C1             uint64         `json:"C1" yaml:"c1"`
	C2             uint64         `json:"C2" yaml:"c2"`
	Authorities    []authorityRaw `json:"AUTHORITIES" yaml:"authorities"`
	Randomness     string         `json:"RANDOMNESS" yaml:"randomness"`
	AllowSecondary bool           `json:"SECONDARY_SLOTS" yaml:"secondary_slots"`
	GenesisSlot    uint64         `json:"GENESIS_SLOT" yaml:"genesis_slot"`
}

type authorityRaw struct {
	Key    string `json:"key" yaml:"key"`
	Weight uint64 `json:"weight" yaml:"weight"`
}

// LoadFromFile loads a Config from a JSON or YAML file, chosen by
// extension (.json, .yaml, .yml).
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading genesis file: %w", err)
	}
	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		return LoadFromYAML(data)
	}
	return LoadFromJSON(data)
}

// LoadFromJSON loads a Config from JSON bytes.
func LoadFromJSON(data []byte) (*Config, error) {
	var raw configRaw
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing genesis JSON: %w", err)
	}
	return raw.toConfig()
}

// LoadFromYAML loads a Config from YAML bytes.
func LoadFromYAML(data []byte) (*Config, error) {
	var raw configRaw
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing genesis YAML: %w", err)
	}
	return raw.toConfig()
}

func (raw *configRaw) toConfig() (*Config, error) {
	cfg := &Config{
		SlotDuration:   raw.SlotDuration,
		EpochLength:    raw.EpochLength,
		C1:             raw.C1,
		C2:             raw.C2,
		AllowSecondary: raw.AllowSecondary,
		GenesisSlot:    types.Slot(raw.GenesisSlot),
		Authorities:    make(types.AuthorityList, len(raw.Authorities)),
	}

	for i, a := range raw.Authorities {
		key, err := parseHex32(a.Key)
		if err != nil {
			return nil, fmt.Errorf("parsing authority %d key: %w", i, err)
		}
		cfg.Authorities[i] = types.Authority{Key: key, Weight: a.Weight}
	}

	if raw.Randomness != "" {
		r, err := parseHex32(raw.Randomness)
		if err != nil {
			return nil, fmt.Errorf("parsing randomness: %w", err)
		}
		cfg.Randomness = types.Randomness(r)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseHex32 converts a hex string (with or without 0x prefix) to 32 bytes.
func parseHex32(s string) ([32]byte, error) {
	var out [32]byte
	s = strings.TrimPrefix(s, "0x")
	if len(s) != 64 {
		return out, fmt.Errorf("invalid length: got %d hex chars, want 64", len(s))
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, fmt.Errorf("decoding hex: %w", err)
	}
	copy(out[:], decoded)
	return out, nil
}
