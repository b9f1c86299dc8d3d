package server

import "github.com/go-chi/chi/v5"

func (s *Server) setupRoutes() {
	r := s.router

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.createSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/message", s.sendMessage)
			r.Post("/fork", s.forkSession)
			r.Post("/abort", s.abortSession)
			r.Get("/title", s.generateTitle)
			r.Get("/events", s.sessionEvents)
		})
	})

	r.Get("/ws", s.handleWebSocket)

	r.Route("/cron", func(r chi.Router) {
		r.Get("/", s.listCronJobs)
		r.Post("/", s.createCronJob)

		r.Route("/{jobID}", func(r chi.Router) {
			r.Get("/", s.getCronJob)
			r.Delete("/", s.deleteCronJob)
			r.Post("/pause", s.pauseCronJob)
			r.Post("/resume", s.resumeCronJob)
			r.Post("/run", s.runCronJob)
			r.Get("/history", s.cronJobHistory)
		})
	})
}
