// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blobstore

import (
	"bytes"
	"context"
	"net/http/httptest"
	"testing"
	"time"

	azlog "github.com/Azure/azure-sdk-for-go/sdk/azcore/log"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForwardSDKLog(t *testing.T) {
	var buf bytes.Buffer
	ForwardSDKLog(zerolog.New(&buf).Level(zerolog.DebugLevel))
	t.Cleanup(func() { azlog.SetListener(nil) })

	fc := newFakeContainer()
	fc.busyPuts = 1
	ts := httptest.NewServer(fc)
	defer ts.Close()

	a := NewAzure("sig=secret")
	a.MaxRetries = 1
	a.RetryDelay = time.Millisecond
	require.NoError(t, a.Put(context.Background(), ts.URL+"/x", []byte("b"), ""))

	assert.Contains(t, buf.String(), `"event":"Retry"`)
	assert.Contains(t, buf.String(), `"event":"Request"`)
}
