// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package blobstore implements the remote store the asset store uploads to:
// an Azure blob container reached with a shared access signature, and an
// in-memory store for tests and dry runs.
package blobstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/streaming"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blockblob"
	"github.com/rs/zerolog"
)

// Azure talks to a blob container. Reads go to the public blob URI, writes
// carry the SAS query.
type Azure struct {
	HTTPClient *http.Client
	// SAS is the shared access signature, with or without the leading "?".
	SAS string
	// MaxRetries bounds retries of throttled or failed requests. Zero uses
	// the SDK default; a negative value disables retries.
	MaxRetries int
	// RetryDelay is the initial backoff. Zero uses the SDK default.
	RetryDelay time.Duration
}

// NewAzure returns an Azure store using sas for writes.
func NewAzure(sas string) *Azure {
	return &Azure{SAS: sas, HTTPClient: &http.Client{}}
}

// HeadExists reads the blob's properties. BlobNotFound or 404 means absent;
// any other failure is an error.
func (a *Azure) HeadExists(ctx context.Context, uri string) (bool, error) {
	c, err := a.blob(uri)
	if err != nil {
		return false, err
	}
	zerolog.Ctx(ctx).Debug().Str("uri", uri).Msg("HEAD")
	_, err = c.GetProperties(ctx, nil)
	switch {
	case err == nil:
		return true, nil
	case bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ResourceNotFound):
		return false, nil
	}
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		if re.StatusCode == http.StatusNotFound {
			return false, nil
		}
		return false, &StatusError{Op: "HEAD", URI: uri, StatusCode: re.StatusCode, Code: re.ErrorCode, Err: err}
	}
	return false, fmt.Errorf("HEAD %s: %w", uri, err)
}

// Put uploads payload to uri as a block blob.
func (a *Azure) Put(ctx context.Context, uri string, payload []byte, contentType string) error {
	c, err := a.blob(a.signed(uri))
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	zerolog.Ctx(ctx).Debug().Str("uri", uri).Int("bytes", len(payload)).Msg("PUT")
	_, err = c.Upload(ctx, streaming.NopCloser(bytes.NewReader(payload)), &blockblob.UploadOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: &contentType},
	})
	if err == nil {
		return nil
	}
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		return &StatusError{Op: "PUT", URI: uri, StatusCode: re.StatusCode, Code: re.ErrorCode, Err: err}
	}
	return fmt.Errorf("PUT %s: %w", uri, err)
}

// ServerSideCopy asks the store to fetch source itself and write it to uri.
// Only the start of the copy is awaited.
func (a *Azure) ServerSideCopy(ctx context.Context, uri, source string) error {
	c, err := a.blob(a.signed(uri))
	if err != nil {
		return err
	}
	zerolog.Ctx(ctx).Debug().Str("uri", uri).Str("source", source).Msg("PUT copy")
	_, err = c.StartCopyFromURL(ctx, source, nil)
	if err == nil {
		return nil
	}
	var re *azcore.ResponseError
	if errors.As(err, &re) {
		return newCopyError(uri, source, re)
	}
	return fmt.Errorf("copy %s to %s: %w", source, uri, err)
}

func (a *Azure) blob(uri string) (*blockblob.Client, error) {
	opts := &blockblob.ClientOptions{}
	opts.Retry = policy.RetryOptions{MaxRetries: int32(a.MaxRetries), RetryDelay: a.RetryDelay}
	if a.HTTPClient != nil {
		opts.Transport = a.HTTPClient
	}
	c, err := blockblob.NewClientWithNoCredential(uri, opts)
	if err != nil {
		return nil, fmt.Errorf("blob client for %s: %w", uri, err)
	}
	return c, nil
}

func (a *Azure) signed(uri string) string {
	sas := strings.TrimPrefix(a.SAS, "?")
	if sas == "" {
		return uri
	}
	if strings.Contains(uri, "?") {
		return uri + "&" + sas
	}
	return uri + "?" + sas
}
