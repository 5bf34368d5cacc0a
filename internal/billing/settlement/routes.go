package settlement

import "github.com/go-chi/chi/v5"

func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/recalculate", h.recalculate)
	r.Post("/periods", h.createPeriod)
	r.Route("/periods/{periodID}", func(r chi.Router) {
		r.Get("/", h.getPeriod)
		r.Delete("/", h.deletePeriod)
		r.Get("/results", h.periodResults)
		r.Post("/approve", h.transition(PeriodStatusApproved))
		r.Post("/send", h.transition(PeriodStatusSent))
		r.Post("/reopen", h.transition(PeriodStatusDraft))
	})
	r.Get("/services/{serviceID}/preview", h.previewService)
}
