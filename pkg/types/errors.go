// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "errors"

// Failure classes. Stages wrap these with fmt.Errorf("...: %w") so the
// controller can classify errors with errors.Is.
var (
	// ErrTransientFetch marks a listing fetch that failed after retries.
	// The affected venue/year keeps whatever was fetched before the failure.
	ErrTransientFetch = errors.New("transient fetch error")

	// ErrStructuralParse marks a listing item whose layout could not be
	// parsed. The item is skipped and counted.
	ErrStructuralParse = errors.New("structural parse error")

	// ErrDownload marks a PDF that could not be retrieved or was invalid.
	ErrDownload = errors.New("download failure")

	// ErrUnknownVenue marks a requested venue with no adapter. It aborts
	// only the venue/year that named it.
	ErrUnknownVenue = errors.New("unknown venue")
)
