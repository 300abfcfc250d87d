// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package venue

import "github.com/pdiddy/confpapers/pkg/types"

// ICML parses icml.cc virtual-site listings.
type ICML struct {
	virtualSite
}

// NewICML returns the ICML adapter.
func NewICML() *ICML {
	return &ICML{virtualSite{
		tag:     "icml",
		venue:   types.VenueICML,
		baseURL: "https://icml.cc",
	}}
}
