// Package config resolves the engine's environment-variable
// configuration surface: the database path, exit code overrides, the
// injection skip-set, and the per-category ignore filters.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/fenwick-labs/failinj/internal/constants"
)

// Category names the resource/release classes that carry ignore
// filters.
type Category string

const (
	MemLeaks        Category = constants.CategoryMemLeaks
	FDLeaks         Category = constants.CategoryFDLeaks
	FileLeaks       Category = constants.CategoryFileLeaks
	UntrackedFrees  Category = constants.CategoryUntrackedFrees
	UntrackedCloses Category = constants.CategoryUntrackedCloses
	UntrackedFclose Category = constants.CategoryUntrackedFclose
)

// Config is the fully-resolved environment surface for one engine
// instance, tagged with the announcement prefix ("FAILINJ" by
// default) that names every variable it reads.
type Config struct {
	Tag string

	DatabasePath string
	ExitError    int
	BugFound     int
	SkipTokens   []string

	ignoreAll    map[Category]bool
	ignoreTokens map[Category][]string
}

// Load resolves a Config from the process environment using tag as
// the "<PFX>" prefix. A malformed integer variable falls back to the
// built-in default rather than failing the whole load, matching the
// shutdown hook's "use the default if the environment read itself
// errors" contract.
func Load(tag string) *Config {
	if tag == "" {
		tag = constants.DefaultTag
	}

	c := &Config{
		Tag:          tag,
		DatabasePath: envOr(tag, constants.EnvDatabase, constants.DefaultDatabaseFile),
		ExitError:    envInt(tag, constants.EnvExitError, constants.DefaultExitError),
		BugFound:     envInt(tag, constants.EnvBugFound, constants.DefaultBugFound),
		SkipTokens:   envTokens(tag, constants.EnvSkipInjection),
		ignoreAll:    map[Category]bool{},
		ignoreTokens: map[Category][]string{},
	}

	for _, cat := range []Category{MemLeaks, FDLeaks, FileLeaks, UntrackedFrees, UntrackedCloses, UntrackedFclose} {
		c.ignoreAll[cat] = envBool(tag, "IGNORE_ALL_"+string(cat))
		c.ignoreTokens[cat] = envTokens(tag, "IGNORE_"+string(cat))
	}

	return c
}

// Ignores reports whether backtrace should be suppressed for cat,
// either via the blanket switch or because it contains any configured
// substring token.
func (c *Config) Ignores(cat Category, backtrace string) bool {
	if c.ignoreAll[cat] {
		return true
	}
	for _, token := range c.ignoreTokens[cat] {
		if token != "" && strings.Contains(backtrace, token) {
			return true
		}
	}
	return false
}

func envName(tag, suffix string) string {
	return tag + "_" + suffix
}

func envOr(tag, suffix, def string) string {
	if v, ok := os.LookupEnv(envName(tag, suffix)); ok && v != "" {
		return v
	}
	return def
}

func envInt(tag, suffix string, def int) int {
	v, ok := os.LookupEnv(envName(tag, suffix))
	if !ok {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return n
}

func envBool(tag, suffix string) bool {
	v, ok := os.LookupEnv(envName(tag, suffix))
	if !ok {
		return false
	}
	v = strings.TrimSpace(v)
	return v != "" && v != "0"
}

func envTokens(tag, suffix string) []string {
	v, ok := os.LookupEnv(envName(tag, suffix))
	if !ok || v == "" {
		return nil
	}
	return strings.Fields(v)
}
