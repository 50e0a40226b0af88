package models

// FileRecord is the persisted identity of a tagged path. Csum is the content
// hash taken when the path was first tagged.
type FileRecord struct {
	ID           string `db:"id" json:"id"`
	RelativePath string `db:"relative_path" json:"relative_path"`
	Csum         string `db:"csum" json:"csum"`
}

// Verification compares the stored checksum of a tagged path with the
// checksum of its current content.
type Verification struct {
	RelativePath string `json:"relative_path"`
	Stored       string `json:"stored"`
	Current      string `json:"current"`
	Match        bool   `json:"match"`
}
