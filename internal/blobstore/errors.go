// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blobstore

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
)

// ErrRedirectCopyUnsupported marks a server-side copy the store refused
// because the copy source answered with a redirect. Callers fall back to
// downloading the source and uploading the bytes themselves.
var ErrRedirectCopyUnsupported = errors.New("server-side copy cannot follow source redirect")

// StatusError reports an unexpected status from the blob store.
type StatusError struct {
	Op         string
	URI        string
	StatusCode int
	Code       string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s %s: HTTP %d (%s)", e.Op, e.URI, e.StatusCode, e.Code)
	}
	return fmt.Sprintf("%s %s: HTTP %d", e.Op, e.URI, e.StatusCode)
}

func (e *StatusError) Unwrap() error { return e.Err }

// CopyError reports a failed server-side copy. SourceStatusCode is the
// status the store saw when it dereferenced the copy source, when known.
type CopyError struct {
	URI              string
	Source           string
	StatusCode       int
	Code             string
	Message          string
	SourceStatusCode int
	Err              error
}

func (e *CopyError) Error() string {
	msg := fmt.Sprintf("copy %s to %s: HTTP %d", e.Source, e.URI, e.StatusCode)
	if e.Code != "" {
		msg += " " + e.Code
	}
	if e.SourceStatusCode != 0 {
		msg += fmt.Sprintf(" (source answered %d)", e.SourceStatusCode)
	}
	return msg
}

// Unwrap exposes ErrRedirectCopyUnsupported for redirect-class failures
// alongside the store's response error.
func (e *CopyError) Unwrap() []error {
	var errs []error
	if e.SourceStatusCode >= 300 && e.SourceStatusCode < 400 {
		errs = append(errs, ErrRedirectCopyUnsupported)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// storageError is the XML error document returned by the store.
type storageError struct {
	Code                 string `xml:"Code"`
	Message              string `xml:"Message"`
	CopySourceStatusCode string `xml:"CopySourceStatusCode"`
	CopySourceErrorCode  string `xml:"CopySourceErrorCode"`
}

// newCopyError builds a CopyError from the store's response error and its
// XML body. The x-ms-copy-source-status-code header wins over the body.
func newCopyError(uri, source string, re *azcore.ResponseError) *CopyError {
	ce := &CopyError{
		URI:        uri,
		Source:     source,
		StatusCode: re.StatusCode,
		Code:       re.ErrorCode,
		Err:        re,
	}
	resp := re.RawResponse
	if resp == nil {
		return ce
	}
	var se storageError
	if body, err := runtime.Payload(resp); err == nil && len(body) > 0 && xml.Unmarshal(body, &se) == nil {
		if ce.Code == "" {
			ce.Code = se.Code
		}
		ce.Message = se.Message
		if n, err := strconv.Atoi(se.CopySourceStatusCode); err == nil {
			ce.SourceStatusCode = n
		}
	}
	if n, err := strconv.Atoi(resp.Header.Get("x-ms-copy-source-status-code")); err == nil {
		ce.SourceStatusCode = n
	}
	return ce
}
