package web

import (
    "net/http"
    "time"

    "github.com/go-chi/chi/v5"
    chimw "github.com/go-chi/chi/v5/middleware"
    "github.com/gorilla/websocket"
    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"

    "github.com/jaminalder/codex-arcade/internal/app"
)

// Options configures the HTTP adapter.
type Options struct {
    Logger *zerolog.Logger
    // Heartbeat is the SSE keep-alive interval.
    Heartbeat time.Duration
}

// NewServer wires routes and returns an http.Handler.
func NewServer(s *app.Service, opts Options) http.Handler {
    lg := log.With().Str("component", "web").Logger()
    if opts.Logger != nil {
        lg = opts.Logger.With().Str("component", "web").Logger()
    }
    if opts.Heartbeat <= 0 {
        opts.Heartbeat = 15 * time.Second
    }
    h := &handlers{
        svc:       s,
        tpl:       loadTemplates(),
        log:       lg,
        heartbeat: opts.Heartbeat,
        upgrader: websocket.Upgrader{
            ReadBufferSize:  1024,
            WriteBufferSize: 1024,
        },
    }

    r := chi.NewRouter()
    r.Use(chimw.RequestID)
    r.Use(chimw.RealIP)
    r.Use(requestLogger(lg))
    r.Use(chimw.Recoverer)

    r.Get("/", h.index)
    r.Get("/health", h.health)
    r.Post("/sessions", h.create)
    r.Route("/sessions/{id}", func(r chi.Router) {
        r.Get("/", h.view)
        r.Delete("/", h.remove)
        r.Get("/events", h.events)
        r.Get("/ws", h.ws)
        r.Route("/tictactoe", func(r chi.Router) {
            r.Post("/difficulty", h.selectDifficulty)
            r.Post("/place", h.placeMark)
            r.Post("/reset", h.resetTicTacToe)
            r.Post("/change-difficulty", h.changeDifficulty)
        })
        r.Route("/memory", func(r chi.Router) {
            r.Post("/grid", h.selectGrid)
            r.Post("/flip", h.flipCard)
            r.Post("/reset", h.resetMemory)
        })
        r.Route("/guess", func(r chi.Router) {
            r.Post("/range", h.selectRange)
            r.Post("/attempt", h.attempt)
            r.Post("/reset", h.resetGuess)
        })
    })
    r.Get("/scores/{game}/{variant}", h.best)
    r.Get("/settings", h.getSettings)
    r.Put("/settings", h.putSettings)
    r.Post("/settings/{setting}/toggle", h.toggleSetting)
    r.NotFound(func(w http.ResponseWriter, r *http.Request) {
        writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
    })
    return r
}

// requestLogger logs one line per request with the chi request id.
func requestLogger(lg zerolog.Logger) func(http.Handler) http.Handler {
    return func(next http.Handler) http.Handler {
        return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
            ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
            start := time.Now()
            defer func() {
                lg.Info().
                    Str("method", r.Method).
                    Str("path", r.URL.Path).
                    Int("status", ww.Status()).
                    Dur("duration", time.Since(start)).
                    Str("request_id", chimw.GetReqID(r.Context())).
                    Msg("request")
            }()
            next.ServeHTTP(ww, r)
        })
    }
}
