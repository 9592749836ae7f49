package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"thorswap-lab/internal/domain"
)

// LegDescriptor is the identity-bearing part of a leg.
// Amount and height are not part of identity.
type LegDescriptor struct {
	Direction domain.Direction
	Chain     string
	Asset     string
	Address   string
	TxID      string
}

// String formats the descriptor as "direction|CHAIN|ASSET|address|txid".
func (d LegDescriptor) String() string {
	return string(d.Direction) + "|" +
		strings.ToUpper(d.Chain) + "|" +
		strings.ToUpper(d.Asset) + "|" +
		d.Address + "|" +
		d.TxID
}

// ComputeRecordID computes the content-derived record id using SHA256.
// Formula: SHA256(sorted(unique(descriptors)) joined by "\n" + "\n" + type|status)
// Returns hex-encoded hash (64 characters). Descriptor order does not matter.
func ComputeRecordID(legs []LegDescriptor, typ, status string) string {
	set := make(map[string]struct{}, len(legs))
	for _, l := range legs {
		set[l.String()] = struct{}{}
	}
	entries := make([]string, 0, len(set))
	for e := range set {
		entries = append(entries, e)
	}
	sort.Strings(entries)

	var b strings.Builder
	b.WriteString(strings.Join(entries, "\n"))
	b.WriteString("\n")
	b.WriteString(strings.ToLower(strings.TrimSpace(typ)))
	b.WriteString("|")
	b.WriteString(strings.ToLower(strings.TrimSpace(status)))

	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:])
}

// DescriptorsOf extracts descriptors from a canonical record.
func DescriptorsOf(rec *domain.CanonicalRecord) []LegDescriptor {
	out := make([]LegDescriptor, 0, len(rec.In)+len(rec.Out))
	for _, l := range rec.In {
		out = append(out, LegDescriptor{domain.DirectionIn, l.Chain, l.Asset, l.Address, l.TxID})
	}
	for _, l := range rec.Out {
		out = append(out, LegDescriptor{domain.DirectionOut, l.Chain, l.Asset, l.Address, l.TxID})
	}
	return out
}
