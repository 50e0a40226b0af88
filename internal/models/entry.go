package models

// FolderEntry describes one child of a listed directory. Directories carry
// no mimetype.
type FolderEntry struct {
	Filename string  `json:"filename"`
	Mimetype *string `json:"mimetype,omitempty"`
	IsDir    bool    `json:"is_dir"`
}

// TranscodeParams describes the resize intent of a request. Nil bounds are
// unconstrained; both nil means no resize was requested.
type TranscodeParams struct {
	MaxWidth  *uint32
	MaxHeight *uint32
	Thumbnail bool
}

func (p TranscodeParams) Bounded() bool {
	return p.MaxWidth != nil || p.MaxHeight != nil
}
