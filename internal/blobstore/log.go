// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package blobstore

import (
	azlog "github.com/Azure/azure-sdk-for-go/sdk/azcore/log"
	"github.com/rs/zerolog"
)

// ForwardSDKLog sends the Azure SDK's request and retry events to logger at
// debug level. The SDK listener is process-wide.
func ForwardSDKLog(logger zerolog.Logger) {
	azlog.SetEvents(azlog.EventRequest, azlog.EventResponse, azlog.EventRetryPolicy)
	azlog.SetListener(func(ev azlog.Event, msg string) {
		logger.Debug().Str("event", string(ev)).Msg(msg)
	})
}
