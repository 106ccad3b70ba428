package fetch

import "fmt"

// DownloadError indicates a download failed after exhausting retries, or
// failed permanently on a non-retryable condition.
type DownloadError struct {
	URL      string
	Attempts int
	Cause    error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download failed after %d attempt(s) (%s): %v", e.Attempts, e.URL, e.Cause)
}

func (e *DownloadError) Unwrap() error {
	return e.Cause
}

// IntegrityError indicates a downloaded artifact did not match its expected
// checksum or size. The staged file is discarded before this error is
// returned.
type IntegrityError struct {
	URL      string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity mismatch for %s:\nexpected: %s\nactual:   %s", e.URL, e.Expected, e.Actual)
}

// SignatureError indicates a detached signature did not verify against the
// publisher keyring.
type SignatureError struct {
	URL   string
	Cause error
}

func (e *SignatureError) Error() string {
	return fmt.Sprintf("signature verification failed for %s: %v", e.URL, e.Cause)
}

func (e *SignatureError) Unwrap() error {
	return e.Cause
}
