package http

import (
	"net/http"

	"github.com/atinyakov/LittleHelper/internal/metrics"
	"github.com/atinyakov/LittleHelper/internal/middleware"
	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

// Router bundles the handlers and guards mounted by NewRouter.
type Router struct {
	Accounts *AccountHandler
	Notes    *NoteHandler
	Tasks    *TaskHandler
	Admin    *AdminHandler
	// Tokens verifies bearer tokens on private routes.
	Tokens middleware.TokenParser
	// Users, when set, rejects tokens whose account was deleted.
	Users middleware.AccountLookup
	// AdminKey guards /api/db; empty disables those routes.
	AdminKey string
	// Metrics is optional; when set, /metrics is served.
	Metrics *metrics.Recorder
	Logger  *zap.Logger
}

// NewRouter constructs the HTTP handler serving the LittleHelper API.
//
// Routes:
//
//	GET    /, /api/test                     liveness
//	POST   /api/users, /api/users/register  AccountHandler.Register
//	POST   /api/users/login                 AccountHandler.Login
//	GET    /api/users/me                    AccountHandler.Me (bearer)
//	PATCH  /api/users/update-color-profile  AccountHandler.UpdateColorProfile (bearer)
//	PATCH  /api/users/change-password       AccountHandler.ChangePassword (bearer)
//	*      /api/notes...                    NoteHandler (bearer)
//	*      /api/tasks...                    TaskHandler (bearer)
//	*      /api/db...                       AdminHandler (admin key)
//	GET    /metrics                         Prometheus exposition
//
// Middleware chain (applied in order):
//  1. RequestID, RealIP, Recoverer
//  2. Metrics, when a recorder is configured
//  3. WithRequestLogging(logger)
//  4. AllowContentType("application/json") for requests with a body
func NewRouter(rt Router) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)
	if rt.Metrics != nil {
		r.Use(middleware.Metrics(rt.Metrics))
	}
	r.Use(middleware.WithRequestLogging(rt.Logger))
	r.Use(chiMiddleware.AllowContentType("application/json"))

	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		writeMessage(w, http.StatusOK, "Welcome to Notes & Tasks API")
	})
	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/test", func(w http.ResponseWriter, _ *http.Request) {
			writeMessage(w, http.StatusOK, "API is working")
		})

		r.Route("/users", func(r chi.Router) {
			r.Post("/", rt.Accounts.Register)
			r.Post("/register", rt.Accounts.Register)
			r.Post("/login", rt.Accounts.Login)

			r.Group(func(r chi.Router) {
				r.Use(middleware.BearerAuth(rt.Tokens, rt.Users))
				r.Get("/me", rt.Accounts.Me)
				r.Patch("/update-color-profile", rt.Accounts.UpdateColorProfile)
				r.Patch("/change-password", rt.Accounts.ChangePassword)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.BearerAuth(rt.Tokens, rt.Users))

			r.Route("/notes", func(r chi.Router) {
				r.Get("/", rt.Notes.List)
				r.Post("/", rt.Notes.Create)
				r.Get("/search", rt.Notes.Search)
				r.Put("/{id}", rt.Notes.Update)
				r.Delete("/{id}", rt.Notes.Delete)
			})

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", rt.Tasks.List)
				r.Post("/", rt.Tasks.Create)
				r.Put("/{id}", rt.Tasks.Update)
				r.Delete("/{id}", rt.Tasks.Delete)
				r.Put("/{id}/start", rt.Tasks.Start)
				r.Put("/{id}/pause", rt.Tasks.Pause)
				r.Put("/{id}/complete", rt.Tasks.Complete)
			})
		})

		r.Route("/db", func(r chi.Router) {
			r.Use(middleware.AdminKey(rt.AdminKey))
			r.Get("/contents", rt.Admin.Contents)
			r.Delete("/delete-all-users", rt.Admin.DeleteAllUsers)
		})
	})

	return r
}
