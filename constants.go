package failinj

import "github.com/fenwick-labs/failinj/internal/constants"

// Re-export constants for public API
const (
	DefaultTag          = constants.DefaultTag
	DefaultDatabaseFile = constants.DefaultDatabaseFile
	DefaultExitError    = constants.DefaultExitError
	DefaultBugFound     = constants.DefaultBugFound
)
