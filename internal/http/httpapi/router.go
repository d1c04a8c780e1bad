package httpapi

import (
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"imagestudio/internal/http/handlers"
	"imagestudio/internal/infra"
	"imagestudio/internal/middleware"
)

// Options configure the router's middleware and static file serving.
type Options struct {
	Logger          *infra.Logger
	AllowedOrigins  []string
	RateLimitPerMin int
	StoragePath     string
	PublicBasePath  string
}

func NewRouter(app *handlers.App, opts Options) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		middleware.Logger(infra.LoggerOrDiscard(opts.Logger)),
		chimw.Recoverer,
		middleware.CORS(opts.AllowedOrigins),
	)

	r.Get("/api/health", app.Health)

	r.Route("/api/images", func(r chi.Router) {
		r.Get("/status/{id}", app.JobStatus)
		r.Get("/upscale/account", app.UpscaleAccount)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))
			r.Post("/generate", app.Generate)
			r.Post("/edit", app.Edit)
			r.Post("/inpaint", app.Inpaint)
			r.Post("/expand", app.Expand)
			r.Post("/fuse", app.Fuse)
			r.Post("/style-transfer", app.StyleTransfer)
			r.Post("/upscale", app.Upscale)
		})
	})

	if opts.StoragePath != "" {
		base := "/" + strings.Trim(opts.PublicBasePath, "/")
		if base == "/" {
			base = "/uploads"
		}
		files := stdhttp.StripPrefix(base, artifactsOnly(stdhttp.FileServer(stdhttp.Dir(opts.StoragePath))))
		r.Get(base+"/*", files.ServeHTTP)
	}

	return r
}

// IncomingDir is the storage subdirectory holding staged uploads.
const IncomingDir = "incoming"

// artifactsOnly serves stored artifacts but hides directory listings and
// staged uploads.
func artifactsOnly(next stdhttp.Handler) stdhttp.Handler {
	return stdhttp.HandlerFunc(func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		p := strings.TrimPrefix(r.URL.Path, "/")
		if p == "" || strings.HasSuffix(p, "/") || p == IncomingDir || strings.HasPrefix(p, IncomingDir+"/") {
			stdhttp.NotFound(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}
