package domain

import (
	"fmt"
	"strings"
)

// PairGroup is a directional chain pair. BTC-ETH and ETH-BTC are distinct groups.
type PairGroup struct {
	InChain  string
	OutChain string
}

// String returns "IN-OUT", the form used for dataset file names.
func (p PairGroup) String() string {
	return p.InChain + "-" + p.OutChain
}

// Reverse returns the opposite direction.
func (p PairGroup) Reverse() PairGroup {
	return PairGroup{InChain: p.OutChain, OutChain: p.InChain}
}

// ParsePairGroup parses "IN-OUT".
func ParsePairGroup(s string) (PairGroup, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return PairGroup{}, fmt.Errorf("invalid pair %q: want IN-OUT", s)
	}
	return PairGroup{InChain: strings.ToUpper(parts[0]), OutChain: strings.ToUpper(parts[1])}, nil
}

// MarshalText implements encoding.TextMarshaler so pairs can key YAML/JSON maps.
func (p PairGroup) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PairGroup) UnmarshalText(b []byte) error {
	parsed, err := ParsePairGroup(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
