// Package api exposes the educms service over HTTP with chi.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"
	"github.com/tendant/edu-cms/pkg/educms"
)

// Handler serves the educms HTTP API.
type Handler struct {
	service educms.Service
	media   educms.MediaStore
	auth    *Auth
	logger  *slog.Logger
}

// NewHandler creates a handler. A nil logger falls back to slog.Default.
func NewHandler(service educms.Service, media educms.MediaStore, auth *Auth, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: service, media: media, auth: auth, logger: logger}
}

// Routes returns the API router. Reads are public, account operations need
// a user token and every write to content needs an admin token.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(h.auth.Verifier())

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Post("/auth/token", h.IssueToken)

	r.Route("/users", func(r chi.Router) {
		r.Post("/", h.RegisterUser)
		r.Group(func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/me", h.GetMe)
			r.Post("/me/favorites/{kind}/{id}", h.ToggleFavorite)
		})
	})

	r.Route("/categories", func(r chi.Router) {
		r.Get("/", h.ListCategories)
		r.Get("/{id}", h.GetCategory)
		r.With(RequireAdmin).Post("/", h.CreateCategory)
		r.With(RequireAdmin).Delete("/{id}", h.DeleteCategory)
	})

	r.Route("/site/{key}", func(r chi.Router) {
		r.Get("/", h.GetSiteConfig)
		r.With(RequireAdmin).Put("/", h.SaveSiteConfig)
	})

	r.Route("/media", func(r chi.Router) {
		r.With(RequireAdmin).Post("/", h.UploadMedia)
		r.Get("/*", h.ServeMedia)
	})

	r.Route("/courses", func(r chi.Router) {
		r.Get("/", h.ListCourses)
		r.With(RequireAdmin).Post("/", h.CreateCourse)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetCourse)
			r.Get("/content", h.ResolveCourseContent)
			r.Post("/visits", h.recordVisit(educms.KindCourse))
			r.With(RequireUser).Post("/join", h.JoinCourse)
			r.With(RequireUser).Delete("/join", h.LeaveCourse)
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Patch("/", h.EditCourse)
				r.Delete("/", h.deleteRecord(educms.KindCourse))
				r.Put("/content", h.SetCourseContent)
				r.Put("/related", h.setRelated(educms.KindCourse))
			})
		})
	})

	// articles, counsels, podcasts, videos
	r.Route("/{kind}", func(r chi.Router) {
		r.Use(requireItemKind)
		r.Get("/", h.ListItems)
		r.With(RequireAdmin).Post("/", h.CreateItem)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetItem)
			r.Post("/visits", h.recordVisit(""))
			r.Group(func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Patch("/", h.EditItem)
				r.Delete("/", h.deleteRecord(""))
				r.Put("/related", h.setRelated(""))
			})
		})
	})

	return r
}

type kindKey struct{}

// requireItemKind resolves the {kind} segment and answers 404 for anything
// that is not an item kind.
func requireItemKind(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		kind, ok := educms.ParseKind(chi.URLParam(r, "kind"))
		if !ok || !kind.IsItem() {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, ErrorResponse{Error: ErrorBody{Code: "not_found", Message: "unknown content kind"}})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), kindKey{}, kind)))
	})
}

// kindOf returns the fixed kind when set, otherwise the one resolved from
// the path.
func kindOf(r *http.Request, fixed educms.Kind) educms.Kind {
	if fixed != "" {
		return fixed
	}
	if kind, ok := r.Context().Value(kindKey{}).(educms.Kind); ok {
		return kind
	}
	return ""
}

// pathID parses a uuid path parameter, answering 400 when malformed.
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		badRequest(w, r, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// listFilter reads category_id, q, limit and offset from the query string.
func listFilter(w http.ResponseWriter, r *http.Request) (educms.ListFilter, bool) {
	q := r.URL.Query()
	filter := educms.ListFilter{Query: q.Get("q")}

	if v := q.Get("category_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			badRequest(w, r, "invalid category_id")
			return filter, false
		}
		filter.CategoryID = &id
	}
	for name, dst := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				badRequest(w, r, "invalid "+name)
				return filter, false
			}
			*dst = n
		}
	}
	return filter, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := render.DecodeJSON(r.Body, v); err != nil {
		badRequest(w, r, "invalid request body: "+err.Error())
		return false
	}
	return true
}
