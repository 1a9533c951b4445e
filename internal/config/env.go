package config

import (
	"os"
	"strconv"
	"time"
)

// These four keys are process-level overrides read directly via os.Getenv,
// the same way the teacher reads SCRAPEGOAT_* through viper but treats a
// couple of knobs (like --config) positionally rather than through the
// config struct. They sit outside the Config/viper precedence chain on
// purpose: a deploy can flip CRAWLEE_PURGE_ON_START without touching the
// YAML file or CLI flags.
const (
	envInternalTimeout = "CRAWLEE_INTERNAL_TIMEOUT"
	envVerboseLog      = "CRAWLEE_VERBOSE_LOG"
	envPurgeOnStart    = "CRAWLEE_PURGE_ON_START"
	envStorageDir      = "CRAWLEE_STORAGE_DIR"
)

// InternalTimeoutOverride reads CRAWLEE_INTERNAL_TIMEOUT (milliseconds) and
// reports whether it was set to a usable positive value.
func InternalTimeoutOverride() (time.Duration, bool) {
	raw := os.Getenv(envInternalTimeout)
	if raw == "" {
		return 0, false
	}
	ms, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || ms <= 0 {
		return 0, false
	}
	return time.Duration(ms) * time.Millisecond, true
}

// VerboseLog reports whether CRAWLEE_VERBOSE_LOG asks for full stack traces
// in error messages.
func VerboseLog() bool {
	return isTruthy(os.Getenv(envVerboseLog))
}

// PurgeOnStart reports whether default storages should be purged before a
// run starts. True unless CRAWLEE_PURGE_ON_START is explicitly "0", so an
// interrupted run can resume by setting it once before restarting.
func PurgeOnStart() bool {
	return os.Getenv(envPurgeOnStart) != "0"
}

// StorageDir is the root directory the default file-backed storage client
// uses, overridable via CRAWLEE_STORAGE_DIR.
func StorageDir() string {
	if dir := os.Getenv(envStorageDir); dir != "" {
		return dir
	}
	return "./storage"
}

func isTruthy(v string) bool {
	switch v {
	case "1", "true", "TRUE", "True":
		return true
	default:
		return false
	}
}
