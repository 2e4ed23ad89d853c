package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/MinnaSync/minna-listen/api/rest"
	apiws "github.com/MinnaSync/minna-listen/api/ws"
	"github.com/MinnaSync/minna-listen/handlers"
)

// LocalOrigins is used when no origins are configured. The control surface
// is meant for pages served from the same machine.
var LocalOrigins = []string{
	"http://localhost",
	"http://localhost:*",
	"http://127.0.0.1",
	"http://127.0.0.1:*",
}

type Options struct {
	// Probe fetches playlists for GET /probe. Nil uses http.DefaultClient.
	Probe *http.Client

	// AllowOrigins is checked on the view stream upgrade and by CORS.
	// Empty means LocalOrigins.
	AllowOrigins []string
}

func (o Options) origins() []string {
	if len(o.AllowOrigins) == 0 {
		return LocalOrigins
	}
	return o.AllowOrigins
}

func Register(r *gin.Engine, s apiws.Session, opts Options) {
	rest.Register(r, s, opts.Probe)

	socket := r.Group("/ws", handlers.WSUpgrader)
	socket.GET("", apiws.Socket(s, opts.origins()))
}

// CORS wraps h with the same origin check the view stream enforces.
func CORS(h http.Handler, opts Options) http.Handler {
	origins := opts.origins()

	c := cors.New(cors.Options{
		AllowOriginFunc: func(origin string) bool {
			return apiws.OriginAllowed(origins, origin)
		},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
	})

	return c.Handler(h)
}
