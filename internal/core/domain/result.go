package domain

import (
	"errors"
	"fmt"
)

// Result is the outcome of a store or pipeline write: success(message) or failure(kind, detail).
type Result struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
	kind    error
}

func Succeeded(message string) Result {
	return Result{OK: true, Message: message}
}

func Failed(kind error, detail string) Result {
	if kind == nil {
		kind = errors.New("unspecified failure")
	}
	return Result{Message: detail, kind: kind}
}

// FailedWith builds a failure result from an error, keeping kind for errors.Is.
func FailedWith(kind error, err error) Result {
	if err == nil {
		return Failed(kind, "")
	}
	return Failed(kind, err.Error())
}

func (r Result) Kind() error {
	if r.OK {
		return nil
	}
	return r.kind
}

func (r Result) Err() error {
	if r.OK {
		return nil
	}
	if r.Message == "" {
		return r.kind
	}
	return fmt.Errorf("%w: %s", r.kind, r.Message)
}
