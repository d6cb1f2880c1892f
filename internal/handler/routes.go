package handler

import (
	"github.com/go-chi/chi/v5"

	"github.com/chatwidget/internal/middleware"
)

// Routes mounts the builder API on r.
func Routes(r chi.Router, cfgH *ConfigHandler, prevH *PreviewHandler, evH *EventsHandler, maxSendsPerMinute int) {
	r.Get("/api/widgets", cfgH.List)
	r.Route("/api/widgets/{id}", func(r chi.Router) {
		r.Get("/config", cfgH.Get)
		r.Put("/config", cfgH.Put)
		r.Delete("/config", cfgH.Delete)
		r.Post("/required-fields", cfgH.RequiredField)
		r.Get("/embed", cfgH.Embed)
	})
	r.Route("/api/preview/sessions", func(r chi.Router) {
		r.Post("/", prevH.Create)
		r.Get("/", prevH.List)
		r.Route("/{sid}", func(r chi.Router) {
			r.Get("/", prevH.Get)
			r.Delete("/", prevH.Delete)
			r.Post("/open", prevH.Open)
			r.Post("/close", prevH.Close)
			r.Post("/user-info", prevH.UserInfo)
			r.With(middleware.RateLimitParam("sid", maxSendsPerMinute)).Post("/messages", prevH.Send)
			r.Post("/dismiss-prompt", prevH.DismissPrompt)
			r.Post("/reconnect", prevH.Reconnect)
			r.Get("/events", evH.ServeWS)
		})
	})
}
