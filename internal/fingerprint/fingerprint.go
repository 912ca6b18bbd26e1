// Package fingerprint derives a stable per-callsite hash from the
// current goroutine's call stack.
//
// The stack is walked with runtime.Callers/runtime.CallersFrames
// rather than by reading raw addresses, so the fingerprint is stable
// across runs even when addresses are randomized: only function names
// and their in-function offsets are hashed.
package fingerprint

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/fenwick-labs/failinj/internal/constants"
)

// Frame is one textualized stack frame.
type Frame struct {
	Symbol string
	Offset uintptr
}

// String renders the frame in the "<symbol>+0x<offset>" wire format
// that both the hash and the pretty-printed backtrace are built from.
func (f Frame) String() string {
	return fmt.Sprintf("%s+0x%x", f.Symbol, f.Offset)
}

// Hash is the 64-bit djb hash of a sequence of frames.
type Hash uint64

// Walk collects the current goroutine's stack, innermost frame first,
// skipping the given number of frames closest to Walk itself (so
// callers can exclude their own fingerprinting machinery).
func Walk(skip int) []Frame {
	pcs := make([]uintptr, constants.MaxStackDepth)
	n := runtime.Callers(skip+2, pcs) // +2: runtime.Callers itself, and Walk
	if n == 0 {
		return nil
	}
	frames := runtime.CallersFrames(pcs[:n])

	out := make([]Frame, 0, n)
	for {
		fr, more := frames.Next()
		symbol := fr.Function
		if symbol == "" {
			symbol = "unknown"
		}
		offset := uintptr(0)
		if fr.Entry != 0 && fr.PC >= fr.Entry {
			offset = fr.PC - fr.Entry
		}
		out = append(out, Frame{Symbol: symbol, Offset: offset})
		if !more {
			break
		}
	}
	return out
}

// Skip reports whether any frame's symbol contains a substring from
// skipSet, or contains the coverage-dump marker; in either case the
// caller must not inject at this call site.
func Skip(frames []Frame, skipSet []string) bool {
	for _, fr := range frames {
		if strings.Contains(fr.Symbol, constants.CoverageDumpSymbol) {
			return true
		}
		for _, token := range skipSet {
			if token != "" && strings.Contains(fr.Symbol, token) {
				return true
			}
		}
	}
	return false
}

// Fold hashes a frame sequence with the djb hash (h = h*33 ^ c) seeded
// at constants.HashSeed, folding each frame's "<symbol>+0x<offset>"
// text in order, innermost to outermost.
func Fold(frames []Frame) Hash {
	h := constants.HashSeed
	for _, fr := range frames {
		s := fr.String()
		for i := 0; i < len(s); i++ {
			h = h*constants.HashMultiplier ^ uint64(s[i])
		}
	}
	return Hash(h)
}

// BacktraceText renders frames as the pretty-printed, indented block
// used for stderr banners and retained resource backtraces:
// "    <symbol>+0x<offset>\n" per frame.
func BacktraceText(frames []Frame) string {
	var b strings.Builder
	for _, fr := range frames {
		b.WriteString("    ")
		b.WriteString(fr.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Outcome is the result of fingerprinting one call site.
type Outcome struct {
	Hash      Hash
	Skip      bool
	Backtrace string
}

// Fingerprint walks the stack (skipping skip frames above the caller),
// checks it against skipSet, and returns the fold plus pretty-printed
// backtrace in one pass.
func Fingerprint(skip int, skipSet []string) Outcome {
	frames := Walk(skip + 1)
	if Skip(frames, skipSet) {
		return Outcome{Skip: true}
	}
	return Outcome{
		Hash:      Fold(frames),
		Backtrace: BacktraceText(frames),
	}
}
