package apriorierr

import "log"

// Logf prefixes a log line with the bracketed error kind, mirroring the
// original project's `[kind] ...` Display convention at call sites that
// only need to report, not return, an error (§10.1, §12.1).
func Logf(kind Kind, format string, args ...interface{}) {
	log.Printf("[%s] "+format, append([]interface{}{kind}, args...)...)
}
