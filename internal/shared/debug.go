package shared

import "os"

// IsDebugMode checks if debug mode is enabled via environment variable
func IsDebugMode() bool {
	return os.Getenv("EXTRACTOR_DEBUG") == "1" || os.Getenv("EXTRACTOR_DEBUG") == "true"
}
