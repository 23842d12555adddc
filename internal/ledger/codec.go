// Package ledger implements the gateway to the Aleo ledger program: a typed
// codec for ledger value literals and an HTTP client for mapping reads and
// transition submission.
package ledger

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"strings"

	"github.com/alanyoungcy/oraclebot/internal/domain"
)

// maxFieldBytes is the largest UTF-8 payload that fits a field element.
// Longer strings are truncated, matching how market ids are derived
// everywhere else in the system.
const maxFieldBytes = 31

// EncodeField encodes a UTF-8 string as an Aleo field literal ("...field").
// The string is interpreted as big-endian bytes and truncated to 31 bytes.
func EncodeField(s string) string {
	b := []byte(s)
	if len(b) > maxFieldBytes {
		b = b[:maxFieldBytes]
	}
	n := new(big.Int).SetBytes(b)
	return n.String() + "field"
}

// DecodeField decodes an Aleo field literal back into the UTF-8 string it was
// encoded from.
func DecodeField(lit string) (string, error) {
	raw := trimVisibility(lit)
	if !strings.HasSuffix(raw, "field") {
		return "", fmt.Errorf("ledger: %q is not a field literal", lit)
	}
	raw = strings.TrimSuffix(raw, "field")

	n, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return "", fmt.Errorf("ledger: invalid field literal %q", lit)
	}

	h := n.Text(16)
	if len(h)%2 != 0 {
		h = "0" + h
	}
	b, err := hex.DecodeString(h)
	if err != nil {
		return "", fmt.Errorf("ledger: decode field literal %q: %w", lit, err)
	}
	return string(b), nil
}

// EncodeU64 encodes an unsigned integer as an Aleo u64 literal.
func EncodeU64(v uint64) string {
	return strconv.FormatUint(v, 10) + "u64"
}

// DecodeU64 decodes an Aleo u64 literal, tolerating .public/.private
// visibility suffixes the node attaches to struct members.
func DecodeU64(lit string) (uint64, error) {
	raw := trimVisibility(lit)
	raw = strings.TrimSuffix(raw, "u64")
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("ledger: invalid u64 literal %q: %w", lit, err)
	}
	return v, nil
}

// EncodeU8 encodes a small unsigned integer as an Aleo u8 literal.
func EncodeU8(v uint8) string {
	return strconv.FormatUint(uint64(v), 10) + "u8"
}

// DecodeU8 decodes an Aleo u8 literal.
func DecodeU8(lit string) (uint8, error) {
	raw := trimVisibility(lit)
	raw = strings.TrimSuffix(raw, "u8")
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("ledger: invalid u8 literal %q: %w", lit, err)
	}
	return uint8(v), nil
}

func trimVisibility(lit string) string {
	lit = strings.TrimSpace(lit)
	lit = strings.TrimSuffix(lit, ".public")
	lit = strings.TrimSuffix(lit, ".private")
	return strings.TrimSpace(lit)
}

var (
	totalStakedRe   = regexp.MustCompile(`total_staked:\s*(\d+)u64`)
	optionAStakesRe = regexp.MustCompile(`option_a_stakes:\s*(\d+)u64`)
	optionBStakesRe = regexp.MustCompile(`option_b_stakes:\s*(\d+)u64`)
)

// ParsePoolStats extracts the stake aggregates from the raw struct text the
// node returns for the pools mapping, e.g.
//
//	{ id: 123field, total_staked: 5000000u64, option_a_stakes: 3000000u64, option_b_stakes: 2000000u64, ... }
func ParsePoolStats(raw string) (domain.PoolStats, error) {
	var stats domain.PoolStats

	for _, f := range []struct {
		re  *regexp.Regexp
		dst *uint64
	}{
		{totalStakedRe, &stats.TotalStaked},
		{optionAStakesRe, &stats.OptionAStakes},
		{optionBStakesRe, &stats.OptionBStakes},
	} {
		m := f.re.FindStringSubmatch(raw)
		if m == nil {
			return domain.PoolStats{}, fmt.Errorf("ledger: pool struct missing %s", f.re.String())
		}
		v, err := strconv.ParseUint(m[1], 10, 64)
		if err != nil {
			return domain.PoolStats{}, fmt.Errorf("ledger: parse pool stat: %w", err)
		}
		*f.dst = v
	}

	return stats, nil
}
