// Package unit exercises the cross-cutting invariants from the public
// failinj API that don't belong to any single internal package: at
// most one injection per run, database idempotence across a clean
// run, and skip-token determinism.
package unit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/fenwick-labs/failinj"
)

func newRun(t *testing.T, name string) (tag, dbPath string) {
	t.Helper()
	tag = "FAILINJ_UNIT_" + name
	dbPath = filepath.Join(t.TempDir(), "failinj.db")
	t.Setenv(tag+"_DATABASE", dbPath)
	failinj.SetTag(tag)
	failinj.Reset()
	t.Cleanup(failinj.Reset)
	return tag, dbPath
}

// At most one primitive call per run returns a synthetic failure: the
// first call at this callsite consumes the run's single injection, and
// every repeat call at the identical callsite afterward proceeds.
func TestAtMostOneInjectionPerRun(t *testing.T) {
	newRun(t, "MULTI")

	injections := 0
	for i := 0; i < 10; i++ {
		addr, err := failinj.Malloc(uintptr(8 * (i + 1)))
		if err != nil {
			injections++
			continue
		}
		failinj.Free(addr)
	}
	require.Equal(t, 1, injections, "only the first call at this callsite may be the injected failure")
}

// A clean run (engine installed and database opened, nothing intercepted)
// must leave the database file exactly as it was found. With no
// intercepted call the database is never loaded: loading waits for the
// first injection decision.
func TestCleanRunLeavesDatabaseUntouched(t *testing.T) {
	_, dbPath := newRun(t, "IDEMPOTENT")

	seed := []byte{1, 2, 3, 4, 5, 6, 7, 8} // one well-formed record
	require.NoError(t, os.WriteFile(dbPath, seed, 0o644))

	failinj.Reset() // rebuild the engine so it opens the seeded file

	code := failinj.Run(func() int { return 0 })
	require.Equal(t, 0, code)

	after, err := os.ReadFile(dbPath)
	require.NoError(t, err)
	require.Equal(t, seed, after, "a run that intercepts nothing must not mutate the database")
}

// mallocAtFixedSite is the Malloc call both runs in
// TestKnownCallsiteNeverReinjects go through. The test reaches it from a
// single line of its loop: calls from two different source lines would
// fingerprint as two different callsites.
func mallocAtFixedSite() (uintptr, error) {
	return failinj.Malloc(16)
}

// A second run whose only callsite is already present in the database
// must proceed without injecting and without growing the database.
func TestKnownCallsiteNeverReinjects(t *testing.T) {
	_, dbPath := newRun(t, "KNOWN")

	var info1 os.FileInfo
	for run := 1; run <= 2; run++ {
		if run == 2 {
			failinj.Reset()
		}
		addr, err := mallocAtFixedSite()
		if run == 1 {
			require.Error(t, err, "first run at this callsite must inject once")

			info1, err = os.Stat(dbPath)
			require.NoError(t, err)
			continue
		}
		require.NoError(t, err, "a known callsite must proceed on a later run")
		failinj.Free(addr)

		info2, err := os.Stat(dbPath)
		require.NoError(t, err)
		require.Equal(t, info1.Size(), info2.Size(), "a known callsite must never grow the database again")
	}
}

// A call whose stack contains a configured skip token never injects,
// regardless of how many times it's invoked.
func TestSkipTokenNeverInjects(t *testing.T) {
	tag, dbPath := newRun(t, "SKIP")
	t.Setenv(tag+"_SKIP_INJECTION", "TestSkipTokenNeverInjects")
	failinj.Reset()

	for i := 0; i < 5; i++ {
		addr, err := failinj.Malloc(uintptr(4 * (i + 1)))
		require.NoError(t, err)
		failinj.Free(addr)
	}

	info, err := os.Stat(dbPath)
	require.NoError(t, err)
	require.Equal(t, int64(0), info.Size())
}
