package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	mw "fotos/internal/middleware"
	"fotos/internal/ws"
)

type Router struct {
	Content *ContentHandler
	Tags    *TagHandler
	// Hub is optional; without it /ws is not routed.
	Hub *ws.Hub
}

func (rt Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(mw.CorsMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "healthy",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	r.Get("/data", rt.Content.Serve)
	r.Get("/data/*", rt.Content.Serve)

	r.Route("/tags", func(r chi.Router) {
		r.Get("/", rt.Tags.List)
		r.Post("/{tag}", rt.Tags.Create)
		r.Get("/{tag}/files", rt.Tags.GetByTag)
		r.Get("/{tag}/files/*", rt.Tags.GetByTag)
		r.Put("/{tag}/files/*", rt.Tags.TagPath)
		r.Delete("/{tag}/files/*", rt.Tags.UntagPath)
	})

	r.Get("/verify/*", rt.Tags.Verify)

	if rt.Hub != nil {
		r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
			ws.HandleWebSocket(rt.Hub, w, r)
		})
	}

	return r
}
