// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// ExternalResource describes one asset as known to the content-addressed
// store. Two resources with the same ContentFingerprint are interchangeable
// and always share a CanonicalURI.
type ExternalResource struct {
	// SourceReference is the locator the asset was discovered at. Empty when
	// the resource was created from raw bytes.
	SourceReference string `json:"source_reference" yaml:"source_reference"`

	// CanonicalURI is {storeBaseURI}/{ContentFingerprint}.
	CanonicalURI string `json:"canonical_uri" yaml:"canonical_uri"`

	// ContentFingerprint is the hex digest of the payload.
	ContentFingerprint string `json:"content_fingerprint" yaml:"content_fingerprint"`

	ContentType   string `json:"content_type" yaml:"content_type"`
	ContentLength int64  `json:"content_length" yaml:"content_length"`

	// Payload is only populated while an upload is in flight. Resolved
	// records never carry it.
	Payload []byte `json:"-" yaml:"-"`
}

// Clone returns a copy of r without its payload.
func (r *ExternalResource) Clone() *ExternalResource {
	if r == nil {
		return nil
	}
	c := *r
	c.Payload = nil
	return &c
}
