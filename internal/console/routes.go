package console

import "github.com/go-chi/chi/v5"

// RegisterRoutes mounts all console endpoints onto the given router
// under the /console prefix.
func RegisterRoutes(r chi.Router, h *Handler) {
	r.Route("/console", func(r chi.Router) {
		r.Get("/", h.State)
		r.Post("/simple", h.Simple)

		r.Route("/batch", func(r chi.Router) {
			r.Delete("/", h.ClearBatch)
			r.Post("/entries", h.AppendBatch)
			r.Delete("/entries/{index}", h.RemoveBatchEntry)
			r.Post("/submit", h.SubmitBatch)
		})

		r.Get("/history", h.History)
		r.Put("/history/filter", h.SetFilter)

		r.Get("/settings", h.Settings)
		r.Put("/settings", h.UpdateSettings)
	})
}
