// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package venue

import "github.com/pdiddy/confpapers/pkg/types"

// ICLR parses iclr.cc virtual-site listings. ICLR cards carry their own
// event designation ("Oral", "Spotlight") next to the title.
type ICLR struct {
	virtualSite
}

// NewICLR returns the ICLR adapter.
func NewICLR() *ICLR {
	return &ICLR{virtualSite{
		tag:          "iclr",
		venue:        types.VenueICLR,
		baseURL:      "https://iclr.cc",
		typeFromCard: true,
	}}
}
