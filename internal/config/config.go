// Package config centralises every env-var-driven bound the WCET pipeline
// reads (per-mnemonic latencies, loop iteration bounds, recursion depth
// bounds), so the fictitious-address-to-original-address indirection lives
// in one place. It also loads a .env file from the working directory.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads a .env file from the current working directory if one
// exists. Its absence is not an error.
func LoadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: stat .env: %w", err)
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}

// FatalError marks a malformed env var value. Malformed aborts the run; a
// missing value merely defaults with a warning.
type FatalError struct {
	Var string
	Val string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("config: malformed %s=%q: %v", e.Var, e.Val, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Resolver centralises lookups of the CYCLE_/RECURSIVE_ bound families.
// The ToOriginal callback maps a fictitious address back to the original
// one so that bounds keyed by the real source address are found even when
// the entry block in hand is a duplicated clone.
type Resolver struct {
	// ToOriginal maps a fictitious address to the real source address it
	// was cloned from, or returns (addr, false) if addr is not fictitious.
	ToOriginal func(addr uint64) (uint64, bool)
	// Warn receives every non-fatal condition (missing bound, etc).
	Warn func(format string, args ...any)
}

func (r *Resolver) warn(format string, args ...any) {
	if r.Warn != nil {
		r.Warn(format, args...)
	}
}

// Latency resolves the <ARCH>_<MNEMONIC> override for an instruction's
// latency in cycles, defaulting to 1 when unset.
func Latency(arch, mnemonic string) (uint32, error) {
	key := strings.ToUpper(arch) + "_" + strings.ToUpper(sanitizeMnemonic(mnemonic))
	val, ok := os.LookupEnv(key)
	if !ok {
		return 1, nil
	}
	n, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, &FatalError{Var: key, Val: val, Err: err}
	}
	return uint32(n), nil
}

// CycleBound resolves CYCLE_0x<addr>, the iteration bound for the loop
// entered at the given address; a fictitious entry is first mapped back to
// its original address. Missing defaults to 1 with a warning; malformed is
// fatal.
func (r *Resolver) CycleBound(entry uint64) (uint32, error) {
	addr := entry
	if r.ToOriginal != nil {
		if orig, isFictitious := r.ToOriginal(entry); isFictitious {
			addr = orig
		}
	}
	key := fmt.Sprintf("CYCLE_0x%x", addr)
	val, ok := os.LookupEnv(key)
	if !ok {
		r.warn("%s not set, defaulting to 1 iteration", key)
		return 1, nil
	}
	n, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, &FatalError{Var: key, Val: val, Err: err}
	}
	return uint32(n), nil
}

// RecursionBound resolves RECURSIVE_0x<addr>, the recursion depth bound
// for the function entered at the given callee address.
func (r *Resolver) RecursionBound(calleeEntry uint64) (uint32, error) {
	key := fmt.Sprintf("RECURSIVE_0x%x", calleeEntry)
	val, ok := os.LookupEnv(key)
	if !ok {
		r.warn("%s not set, defaulting to depth 1", key)
		return 1, nil
	}
	n, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, &FatalError{Var: key, Val: val, Err: err}
	}
	return uint32(n), nil
}

// sanitizeMnemonic replaces every character that can't appear in a POSIX
// env var name (e.g. '.' in some AT&T-style mnemonics) with '_'. It does not
// change case; Latency upper-cases the result.
func sanitizeMnemonic(mnemonic string) string {
	var b strings.Builder
	for _, r := range mnemonic {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
