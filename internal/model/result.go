package model

// SearchResult is one image candidate returned by a search provider.
type SearchResult struct {
	URL   string
	Width int
	Title string
	Mime  string
}

// Status is the terminal state of an item in a batch run.
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailure Status = "failure"
	StatusSkipped Status = "skipped"
)

// Outcome records what happened to one item. Bytes is zero when nothing was written.
type Outcome struct {
	ItemID string
	Status Status
	Bytes  int64
	Path   string
	Err    error
}

// Succeeded reports whether the outcome counts towards the success tally.
// A skipped item already has a usable file on disk, so it counts.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess || o.Status == StatusSkipped
}
