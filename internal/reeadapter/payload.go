package reeadapter

// Wire types for the REE apidatos balance endpoint. The payload nests a
// primary data object carrying the request metadata and a list of typed
// sections, each holding typed content entries with one value point per
// observation datetime.

// BalanceResponse is the top-level apidatos payload.
type BalanceResponse struct {
	Data     *ResponseData `json:"data"`
	Included []Section     `json:"included"`
	Errors   []APIError    `json:"errors,omitempty"`
}

// ResponseData is the primary object of the payload.
type ResponseData struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Attributes DataAttributes `json:"attributes"`
}

// DataAttributes carries shared metadata for the whole response.
type DataAttributes struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Datetime    string `json:"datetime,omitempty"`
	LastUpdate  string `json:"last-update,omitempty"`
}

// Section is one typed group (generation, demand, interchange, storage).
type Section struct {
	Type       string            `json:"type"`
	ID         string            `json:"id"`
	Attributes SectionAttributes `json:"attributes"`
}

// SectionAttributes holds the section title and its content entries.
type SectionAttributes struct {
	Title      string         `json:"title"`
	LastUpdate string         `json:"last-update,omitempty"`
	Content    []ContentEntry `json:"content"`
}

// ContentEntry is one labeled series inside a section.
type ContentEntry struct {
	Type       string          `json:"type"`
	ID         string          `json:"id"`
	GroupID    string          `json:"groupId,omitempty"`
	Attributes EntryAttributes `json:"attributes"`
}

// EntryAttributes describes the series and carries its value points.
type EntryAttributes struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       string       `json:"color,omitempty"`
	Magnitude   string       `json:"magnitude,omitempty"`
	Composite   bool         `json:"composite,omitempty"`
	LastUpdate  string       `json:"last-update,omitempty"`
	Values      []ValuePoint `json:"values"`
}

// ValuePoint is one observation of a series.
type ValuePoint struct {
	Value      float64 `json:"value"`
	Percentage float64 `json:"percentage"`
	Datetime   string  `json:"datetime"`
}

// APIError is an error object returned by apidatos.
type APIError struct {
	Code   string `json:"code,omitempty"`
	Status string `json:"status,omitempty"`
	Title  string `json:"title,omitempty"`
	Detail string `json:"detail,omitempty"`
}
