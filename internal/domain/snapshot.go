package domain

// ProjectSnapshot is a read-only summary of the active composition.
// A nil snapshot means there is no active project container.
type ProjectSnapshot struct {
	Name   string `json:"name"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}
