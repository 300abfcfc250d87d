// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package venue

import "github.com/pdiddy/confpapers/pkg/types"

// NeurIPS parses neurips.cc virtual-site listings.
type NeurIPS struct {
	virtualSite
}

// NewNeurIPS returns the NeurIPS adapter.
func NewNeurIPS() *NeurIPS {
	return &NeurIPS{virtualSite{
		tag:     "neurips",
		venue:   types.VenueNeurIPS,
		baseURL: "https://neurips.cc",
	}}
}
