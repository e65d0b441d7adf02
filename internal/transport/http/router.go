package http

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"inkwell/internal/handler"
	"inkwell/internal/httputil"
	"inkwell/internal/metrics"
	"inkwell/internal/model"
	authmw "inkwell/internal/transport/http/middleware"
)

const requestTimeout = 60 * time.Second

// RouterConfig holds the dependencies needed to create routes
type RouterConfig struct {
	AuthHandler         *handler.AuthHandler
	UserHandler         *handler.UserHandler
	PostHandler         *handler.PostHandler
	CommentHandler      *handler.CommentHandler
	NotificationHandler *handler.NotificationHandler

	Authenticator authmw.Authenticator
	AuthLimiter   *authmw.RateLimiter
	FrontendURL   string
}

// NewRouter creates and configures a new Chi router with all route groups
func NewRouter(cfg RouterConfig) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(authmw.RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "Cookie"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.Timeout(requestTimeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErr(w, r, httputil.NewAppError(http.StatusNotFound,
			fmt.Sprintf("Can't find %s on this server", r.URL.Path)))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErr(w, r, httputil.NewAppError(http.StatusMethodNotAllowed,
			fmt.Sprintf("Method %s is not allowed on %s", r.Method, r.URL.Path)))
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteMessage(w, http.StatusOK, "Welcome to InkWell Backend API!")
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	protect := authmw.Protect(cfg.Authenticator)
	optional := authmw.Optional(cfg.Authenticator)
	writers := authmw.RestrictTo(model.RoleAuthor, model.RoleAdmin)

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Credential endpoints are rate limited per client IP.
			r.Group(func(r chi.Router) {
				r.Use(cfg.AuthLimiter.Limit("auth"))
				r.Post("/signup", cfg.AuthHandler.Signup)
				r.Post("/login", cfg.AuthHandler.Login)
				r.Post("/forgotPassword", cfg.AuthHandler.ForgotPassword)
				r.Post("/resend-verification", cfg.AuthHandler.ResendVerification)
				r.Patch("/reset-password/{token}", cfg.AuthHandler.ResetPassword)
			})

			r.Post("/refresh-token", cfg.AuthHandler.RefreshToken)
			r.Get("/logout", cfg.AuthHandler.Logout)
			r.Get("/verify-email/{token}", cfg.AuthHandler.VerifyEmail)
			r.With(optional).Get("/check-auth", cfg.AuthHandler.CheckAuth)
			r.With(protect).Patch("/updateMyPassword", cfg.AuthHandler.UpdateMyPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.Use(protect)

			r.Get("/me", cfg.UserHandler.Me)
			r.Patch("/updateMe", cfg.UserHandler.UpdateMe)
			r.Delete("/deleteMe", cfg.UserHandler.DeleteMe)

			r.Group(func(r chi.Router) {
				r.Use(authmw.RestrictTo(model.RoleAdmin))
				r.Get("/", cfg.UserHandler.List)
				r.Post("/", cfg.UserHandler.Create)
				r.Get("/{id}", cfg.UserHandler.Get)
				r.Patch("/{id}", cfg.UserHandler.Update)
				r.Delete("/{id}", cfg.UserHandler.Delete)
			})
		})

		r.Route("/posts", func(r chi.Router) {
			r.With(optional).Get("/", cfg.PostHandler.List)
			r.With(optional).Get("/{id}", cfg.PostHandler.Get)

			r.Group(func(r chi.Router) {
				r.Use(protect)

				r.Get("/my/{collection}", cfg.PostHandler.Mine)

				r.Post("/{id}/like", cfg.PostHandler.Like)
				r.Delete("/{id}/like", cfg.PostHandler.Unlike)
				r.Post("/{id}/bookmark", cfg.PostHandler.Bookmark)
				r.Delete("/{id}/bookmark", cfg.PostHandler.Unbookmark)

				r.Patch("/drafts/{id}", cfg.PostHandler.UpdateDraft)
				r.Delete("/drafts/{id}", cfg.PostHandler.DeleteDraft)

				r.Group(func(r chi.Router) {
					r.Use(writers)
					r.Post("/", cfg.PostHandler.Create)
					r.Post("/draft", cfg.PostHandler.CreateDraft)
					r.Patch("/{id}", cfg.PostHandler.Update)
					r.Delete("/{id}", cfg.PostHandler.Delete)
					r.Patch("/{id}/publishDraft", cfg.PostHandler.PublishDraft)
				})
			})

			r.Route("/{id}/comments", func(r chi.Router) {
				r.With(optional).Get("/", cfg.CommentHandler.List)

				r.Group(func(r chi.Router) {
					r.Use(protect)
					r.Post("/", cfg.CommentHandler.Create)
					r.Patch("/{commentId}", cfg.CommentHandler.Update)
					r.Delete("/{commentId}", cfg.CommentHandler.Delete)
				})
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Use(protect)
			r.Get("/", cfg.NotificationHandler.List)
			r.Patch("/read-all", cfg.NotificationHandler.MarkAllRead)
			r.Patch("/{id}/read", cfg.NotificationHandler.MarkRead)
		})
	})

	return r
}
