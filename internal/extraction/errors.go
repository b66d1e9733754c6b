package extraction

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrBusy           = errors.New("an extraction is already running")
	ErrNoText         = errors.New("no text to analyse")
	ErrQuotaExhausted = errors.New("API limit reached, wait a minute and retry")
)

type ErrorKind int

const (
	KindOther ErrorKind = iota
	// KindRateLimited moves on to the next candidate model.
	KindRateLimited
	// KindUnavailable means the model or API version does not exist for this
	// key; it also moves on.
	KindUnavailable
)

// APIError is a failed call to the model provider.
type APIError struct {
	Status  int
	Message string
	Kind    ErrorKind
}

func (e *APIError) Error() string {
	if e.Status == 0 {
		return e.Message
	}
	return fmt.Sprintf("gemini %d: %s", e.Status, e.Message)
}

func classify(status int, message string) ErrorKind {
	lower := strings.ToLower(message)
	switch {
	case status == 429 || strings.Contains(lower, "quota") || strings.Contains(lower, "limit") || strings.Contains(lower, "resource_exhausted"):
		return KindRateLimited
	case status == 404 || strings.Contains(lower, "not found") || strings.Contains(lower, "supported") || strings.Contains(lower, "available"):
		return KindUnavailable
	}
	return KindOther
}

// DecodeError reports a model answer that is not a JSON object.
type DecodeError struct {
	Raw string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode extraction: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
