package handlers

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"strconv"

	"github.com/rs/zerolog/log"

	"fotos/internal/apierr"
	"fotos/internal/models"
	"fotos/internal/services"
)

type ContentHandler struct {
	content *services.ContentService
}

func NewContentHandler(content *services.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

// Serve answers GET /data/{subpath} with a directory listing, the raw file,
// or a resized image when max_width/max_height ask for one.
func (h *ContentHandler) Serve(w http.ResponseWriter, r *http.Request) {
	params, err := transcodeParams(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	subpath, err := pathParam(r, "*")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.content.Serve(r.Context(), subpath, params)
	if err != nil {
		writeError(w, r, err)
		return
	}

	switch c := result.(type) {
	case services.DirectoryListing:
		writeJSON(w, http.StatusOK, c.Entries)
	case services.RawFile:
		serveRaw(w, r, c)
	case services.TranscodedFile:
		attachment(w, c.Filename, c.Mimetype)
		w.Header().Set("Content-Length", strconv.Itoa(len(c.Data)))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(c.Data); err != nil {
			log.Debug().Err(err).Str("file", c.Filename).Msg("write transcoded image")
		}
	}
}

func serveRaw(w http.ResponseWriter, r *http.Request, c services.RawFile) {
	f, err := os.Open(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		writeError(w, r, apierr.NotFoundf("path %s doesn't exist", c.Filename))
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, r, err)
		return
	}

	attachment(w, c.Filename, c.Mimetype)
	http.ServeContent(w, r, c.Filename, info.ModTime(), f)
}

func transcodeParams(r *http.Request) (models.TranscodeParams, error) {
	var p models.TranscodeParams
	var err error

	if p.MaxWidth, err = queryUint32(r, "max_width"); err != nil {
		return p, err
	}
	if p.MaxHeight, err = queryUint32(r, "max_height"); err != nil {
		return p, err
	}
	if p.Thumbnail, err = queryBool(r, "thumbnail"); err != nil {
		return p, err
	}
	return p, nil
}
