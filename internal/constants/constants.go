// Package constants holds the engine-wide defaults for failinj.
package constants

// Table fabric sizing. A fixed bucket count is intentional: the engine
// favors deterministic iteration order over throughput, and every
// intercepted call already pays for a full stack walk.
const (
	// TableWidth is the bucket count for every hashtable.Table instance.
	TableWidth = 1024

	// TableMask is TableWidth-1; TableWidth must stay a power of two.
	TableMask = TableWidth - 1
)

// Fingerprinting.
const (
	// HashSeed is the djb hash seed mandated by the wire format: any
	// implementation hashing the same stack must reach the same value.
	HashSeed uint64 = 53815381

	// HashMultiplier is the djb hash multiplier.
	HashMultiplier uint64 = 33

	// CoverageDumpSymbol is the frame name that always causes
	// fingerprinting to skip, so the engine never injects into
	// coverage instrumentation unwinding through itself.
	CoverageDumpSymbol = "gcov_do_dump"

	// MaxStackDepth bounds the number of frames collected per walk.
	MaxStackDepth = 64
)

// Default announcement tag and environment variable names. The tag is
// the "<PFX>" placeholder from the configuration surface; it prefixes
// every environment variable name and every stderr banner.
const (
	DefaultTag = "FAILINJ"

	EnvDatabase      = "DATABASE"
	EnvExitError     = "EXIT_ERROR"
	EnvBugFound      = "BUG_FOUND"
	EnvSkipInjection = "SKIP_INJECTION"
)

// Ignore-filter category names, used to build <PFX>_IGNORE_<CATEGORY>
// and <PFX>_IGNORE_ALL_<CATEGORY> variable names.
const (
	CategoryMemLeaks        = "MEM_LEAKS"
	CategoryFDLeaks         = "FD_LEAKS"
	CategoryFileLeaks       = "FILE_LEAKS"
	CategoryUntrackedFrees  = "UNTRACKED_FREES"
	CategoryUntrackedCloses = "UNTRACKED_CLOSES"
	CategoryUntrackedFclose = "UNTRACKED_FCLOSES"
)

// Default exit codes, overridable via <PFX>_EXIT_ERROR / <PFX>_BUG_FOUND.
const (
	DefaultExitError = 32
	DefaultBugFound  = 33
)

// DefaultDatabaseFile is the database filename used when <PFX>_DATABASE
// is unset.
const DefaultDatabaseFile = "failinj.db"

// Implicit memory-leak suppression: backtraces containing either of
// these substrings are never reported as leaks, regardless of the
// MEM_LEAKS ignore list. These correspond to buffers the standard I/O
// machinery allocates lazily on behalf of a stream, which the program
// under test never directly owns.
const (
	ImplicitIgnoreFileDoAllocate = "_IO_file_doallocate"
	ImplicitIgnoreFopen          = "fopen"
)
