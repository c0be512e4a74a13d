package weather

import (
	"errors"
	"fmt"
)

// ErrFetchExhausted is joined with the last fetch failure once the retry bound is reached.
var ErrFetchExhausted = errors.New("fetch retries exhausted")

// FetchError is returned when the weather API could not be read.
// StatusCode is zero for transport failures.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PersistError is returned when the landing artifact could not be written.
type PersistError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("persist %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// AuthError is returned when object storage credentials are missing or rejected.
type AuthError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("upload s3://%s/%s: credentials: %v", e.Bucket, e.Key, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// UploadError covers every other object storage failure.
type UploadError struct {
	Bucket string
	Key    string
	Err    error
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload s3://%s/%s: %v", e.Bucket, e.Key, e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }
