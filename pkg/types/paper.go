// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// DownloadStatus indicates the state of PDF acquisition for a paper.
type DownloadStatus string

const (
	StatusPending DownloadStatus = "pending"
	StatusSuccess DownloadStatus = "success"
	StatusFailed  DownloadStatus = "failed"
)

// Venue tags as they appear in the manifest's conference field.
const (
	VenueNeurIPS = "NeurIPS"
	VenueICLR    = "ICLR"
	VenueICML    = "ICML"
	VenueCVPR    = "CVPR"
)

// Search query engine keys used in PaperRecord.SearchQueries.
const (
	QueryGoogle  = "google"
	QueryArxiv   = "arxiv"
	QueryScholar = "scholar"
)

// PaperRecord is the canonical, venue-agnostic paper entry persisted in a
// manifest. Field names are shared with the browsing UI and must not change.
type PaperRecord struct {
	// ID is the title hash (see normalize.TitleID).
	ID string `json:"id" yaml:"id"`

	// Title is the paper title; never empty.
	Title string `json:"title" yaml:"title"`

	// Authors is free-form, comma-joined; "Unknown" when unavailable.
	Authors string `json:"authors" yaml:"authors"`

	// Abstract may be empty but is always present in the JSON output.
	Abstract string `json:"abstract" yaml:"abstract"`

	// Conference is one of the venue tags (NeurIPS, ICLR, ICML, CVPR).
	Conference string `json:"conference" yaml:"conference"`

	Year int `json:"year" yaml:"year"`

	// PDFURL is the remote PDF source, omitted when unknown.
	PDFURL string `json:"pdf_url,omitempty" yaml:"pdf_url,omitempty"`

	// LocalPDFPath is set once the PDF exists on disk.
	LocalPDFPath string `json:"local_pdf_path,omitempty" yaml:"local_pdf_path,omitempty"`

	DownloadStatus DownloadStatus `json:"download_status" yaml:"download_status"`

	// DownloadMethod tags the adapter or strategy that produced the PDF
	// (e.g. "cvpr", "neurips", "arxiv").
	DownloadMethod string `json:"download_method" yaml:"download_method"`

	// SearchQueries maps a search engine name to a fallback query string,
	// used when no direct PDF link exists.
	SearchQueries map[string]string `json:"search_queries" yaml:"search_queries"`

	// PaperPageURL is the venue's detail page for the paper.
	PaperPageURL string `json:"paper_page_url,omitempty" yaml:"paper_page_url,omitempty"`

	// Type is the event designation (e.g. "Oral"), absent when the venue
	// does not expose one.
	Type string `json:"type,omitempty" yaml:"type,omitempty"`
}

// Succeeded reports whether the record's PDF has been materialized.
func (p *PaperRecord) Succeeded() bool {
	return p.DownloadStatus == StatusSuccess && p.LocalPDFPath != ""
}
