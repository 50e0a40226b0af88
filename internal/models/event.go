package models

// TagEvent types, sent as the "type" field.
const (
	// EventTagCreated carries TagID and Tagname.
	EventTagCreated = "tag_created"
	// EventPathTagged and EventPathUntagged carry TagID and RelativePath.
	EventPathTagged   = "path_tagged"
	EventPathUntagged = "path_untagged"
)

// TagEvent is broadcast to websocket clients after a successful change to
// the tag store.
type TagEvent struct {
	Type         string `json:"type"`
	TagID        string `json:"tag_id"`
	Tagname      string `json:"tagname,omitempty"`
	RelativePath string `json:"relative_path,omitempty"`
}
