package web

import (
    "bytes"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "strings"
    "time"

    "github.com/go-chi/chi/v5"
    "github.com/gorilla/websocket"
    "github.com/rs/zerolog"

    "github.com/jaminalder/codex-arcade/internal/app"
    "github.com/jaminalder/codex-arcade/internal/domain"
    "github.com/jaminalder/codex-arcade/internal/guess"
    "github.com/jaminalder/codex-arcade/internal/memory"
    "github.com/jaminalder/codex-arcade/internal/scores"
)

const maxBody = 1 << 12

var (
    wsWriteWait    = 10 * time.Second
    wsPongWait     = 60 * time.Second
    wsPingInterval = (wsPongWait * 9) / 10
)

var errBadRequest = errors.New("bad request")

type handlers struct {
    svc       *app.Service
    tpl       *templates
    log       zerolog.Logger
    heartbeat time.Duration
    upgrader  websocket.Upgrader
}

type errorBody struct {
    Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
    w.Header().Set("Content-Type", "application/json; charset=utf-8")
    w.WriteHeader(status)
    _ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP status codes.
func (h *handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
    status, code := http.StatusInternalServerError, "internal"
    switch {
    case errors.Is(err, app.ErrNotFound):
        status, code = http.StatusNotFound, "not_found"
    case errors.Is(err, errBadRequest):
        status, code = http.StatusBadRequest, "bad_request"
    case errors.Is(err, domain.ErrIllegalMove):
        status, code = http.StatusConflict, "illegal_move"
    case errors.Is(err, domain.ErrOutOfRange):
        status, code = http.StatusUnprocessableEntity, "out_of_range"
    }
    if status == http.StatusInternalServerError {
        h.log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
    }
    writeJSON(w, status, errorBody{Error: code})
}

func decodeBody(r *http.Request, v any) error {
    dec := json.NewDecoder(io.LimitReader(r.Body, maxBody))
    dec.UseNumber()
    if err := dec.Decode(v); err != nil {
        return fmt.Errorf("decode body: %v: %w", err, errBadRequest)
    }
    return nil
}

func (h *handlers) index(w http.ResponseWriter, r *http.Request) {
    b, err := renderTemplate(h.tpl.index, newIndexData())
    if err != nil {
        h.writeError(w, r, err)
        return
    }
    w.Header().Set("Content-Type", "text/html; charset=utf-8")
    w.WriteHeader(http.StatusOK)
    _, _ = w.Write(b)
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
    writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// create accepts {"kind": "..."} or a form post from the index page, which
// is redirected to the session page.
func (h *handlers) create(w http.ResponseWriter, r *http.Request) {
    form := strings.HasPrefix(r.Header.Get("Content-Type"), "application/x-www-form-urlencoded")
    var raw string
    if form {
        _ = r.ParseForm()
        raw = r.Form.Get("kind")
    } else {
        var req struct {
            Kind string `json:"kind"`
        }
        if err := decodeBody(r, &req); err != nil {
            h.writeError(w, r, err)
            return
        }
        raw = req.Kind
    }
    kind, err := app.ParseKind(raw)
    if err != nil {
        h.writeError(w, r, err)
        return
    }
    snap, err := h.svc.CreateSession(kind)
    if err != nil {
        h.writeError(w, r, err)
        return
    }
    if form {
        http.Redirect(w, r, "/sessions/"+snap.ID, http.StatusSeeOther)
        return
    }
    writeJSON(w, http.StatusCreated, snap)
}

func (h *handlers) view(w http.ResponseWriter, r *http.Request) {
    snap, ok := h.svc.Get(chi.URLParam(r, "id"))
    if !ok {
        h.writeError(w, r, app.ErrNotFound)
        return
    }
    if strings.Contains(r.Header.Get("Accept"), "text/html") {
        b, err := renderTemplate(h.tpl.session, snap)
        if err != nil {
            h.writeError(w, r, err)
            return
        }
        w.Header().Set("Content-Type", "text/html; charset=utf-8")
        w.WriteHeader(http.StatusOK)
        _, _ = w.Write(b)
        return
    }
    writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) remove(w http.ResponseWriter, r *http.Request) {
    if err := h.svc.Delete(chi.URLParam(r, "id")); err != nil {
        h.writeError(w, r, err)
        return
    }
    w.WriteHeader(http.StatusNoContent)
}

// reply writes the snapshot or the mapped error.
func (h *handlers) reply(w http.ResponseWriter, r *http.Request, snap *app.Snapshot, err error) {
    if err != nil {
        h.writeError(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, snap)
}

func (h *handlers) selectDifficulty(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Difficulty string `json:"difficulty"`
    }
    if err := decodeBody(r, &req); err != nil {
        h.writeError(w, r, err)
        return
    }
    d, err := domain.ParseDifficulty(req.Difficulty)
    if err != nil {
        h.writeError(w, r, err)
        return
    }
    snap, err := h.svc.SelectDifficulty(chi.URLParam(r, "id"), d)
    h.reply(w, r, snap, err)
}

func (h *handlers) placeMark(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Cell *int `json:"cell"`
    }
    if err := decodeBody(r, &req); err != nil {
        h.writeError(w, r, err)
        return
    }
    if req.Cell == nil {
        h.writeError(w, r, fmt.Errorf("missing cell: %w", errBadRequest))
        return
    }
    snap, err := h.svc.PlaceMark(chi.URLParam(r, "id"), *req.Cell)
    h.reply(w, r, snap, err)
}

func (h *handlers) resetTicTacToe(w http.ResponseWriter, r *http.Request) {
    snap, err := h.svc.ResetTicTacToe(chi.URLParam(r, "id"))
    h.reply(w, r, snap, err)
}

func (h *handlers) changeDifficulty(w http.ResponseWriter, r *http.Request) {
    snap, err := h.svc.ChangeDifficulty(chi.URLParam(r, "id"))
    h.reply(w, r, snap, err)
}

func (h *handlers) selectGrid(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Grid string `json:"grid"`
    }
    if err := decodeBody(r, &req); err != nil {
        h.writeError(w, r, err)
        return
    }
    g, err := memory.ParseGrid(req.Grid)
    if err != nil {
        h.writeError(w, r, err)
        return
    }
    snap, err := h.svc.SelectGrid(chi.URLParam(r, "id"), g)
    h.reply(w, r, snap, err)
}

func (h *handlers) flipCard(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Card *int `json:"card"`
    }
    if err := decodeBody(r, &req); err != nil {
        h.writeError(w, r, err)
        return
    }
    if req.Card == nil {
        h.writeError(w, r, fmt.Errorf("missing card: %w", errBadRequest))
        return
    }
    snap, err := h.svc.FlipCard(chi.URLParam(r, "id"), *req.Card)
    h.reply(w, r, snap, err)
}

func (h *handlers) resetMemory(w http.ResponseWriter, r *http.Request) {
    snap, err := h.svc.ResetMemory(chi.URLParam(r, "id"))
    h.reply(w, r, snap, err)
}

func (h *handlers) selectRange(w http.ResponseWriter, r *http.Request) {
    req := struct {
        Max int `json:"max"`
    }{Max: guess.DefaultMax}
    if r.ContentLength != 0 {
        if err := decodeBody(r, &req); err != nil {
            h.writeError(w, r, err)
            return
        }
    }
    snap, err := h.svc.SelectRange(chi.URLParam(r, "id"), req.Max)
    h.reply(w, r, snap, err)
}

// attempt accepts the guess as a JSON number or as raw text input.
func (h *handlers) attempt(w http.ResponseWriter, r *http.Request) {
    var req struct {
        Value json.RawMessage `json:"value"`
    }
    if err := decodeBody(r, &req); err != nil {
        h.writeError(w, r, err)
        return
    }
    raw := string(bytes.TrimSpace(req.Value))
    if strings.HasPrefix(raw, `"`) {
        var s string
        if err := json.Unmarshal(req.Value, &s); err != nil {
            h.writeError(w, r, fmt.Errorf("decode value: %v: %w", err, errBadRequest))
            return
        }
        raw = s
    }
    hint, snap, err := h.svc.GuessInput(chi.URLParam(r, "id"), raw)
    if err != nil {
        h.writeError(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, struct {
        Hint    guess.Hint    `json:"hint"`
        Session *app.Snapshot `json:"session"`
    }{hint, snap})
}

func (h *handlers) resetGuess(w http.ResponseWriter, r *http.Request) {
    snap, err := h.svc.ResetGuess(chi.URLParam(r, "id"))
    h.reply(w, r, snap, err)
}

func (h *handlers) best(w http.ResponseWriter, r *http.Request) {
    scope := scores.Scope{Game: chi.URLParam(r, "game"), Variant: chi.URLParam(r, "variant")}
    if _, err := app.ParseKind(scope.Game); err != nil {
        h.writeError(w, r, err)
        return
    }
    v, ok, err := h.svc.Best(r.Context(), scope)
    if err != nil {
        h.writeError(w, r, err)
        return
    }
    writeJSON(w, http.StatusOK, struct {
        scores.Scope
        Best    int  `json:"best,omitempty"`
        HasBest bool `json:"hasBest"`
    }{scope, v, ok})
}

type settingsBody struct {
    Sound     *bool `json:"sound,omitempty"`
    Vibration *bool `json:"vibration,omitempty"`
}

func (h *handlers) writeSettings(w http.ResponseWriter) {
    st := h.svc.Settings()
    sound, vib := st.Sound(), st.Vibration()
    writeJSON(w, http.StatusOK, settingsBody{Sound: &sound, Vibration: &vib})
}

func (h *handlers) getSettings(w http.ResponseWriter, r *http.Request) {
    h.writeSettings(w)
}

func (h *handlers) putSettings(w http.ResponseWriter, r *http.Request) {
    var req settingsBody
    if err := decodeBody(r, &req); err != nil {
        h.writeError(w, r, err)
        return
    }
    st := h.svc.Settings()
    if req.Sound != nil {
        st.SetSound(*req.Sound)
    }
    if req.Vibration != nil {
        st.SetVibration(*req.Vibration)
    }
    h.writeSettings(w)
}

func (h *handlers) toggleSetting(w http.ResponseWriter, r *http.Request) {
    st := h.svc.Settings()
    switch name := chi.URLParam(r, "setting"); name {
    case "sound":
        st.ToggleSound()
    case "vibration":
        st.ToggleVibration()
    default:
        h.writeError(w, r, fmt.Errorf("setting %q: %w", name, errBadRequest))
        return
    }
    h.writeSettings(w)
}

func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")
    snap, ok := h.svc.Get(id)
    if !ok {
        h.writeError(w, r, app.ErrNotFound)
        return
    }
    w.Header().Set("Content-Type", "text/event-stream")
    w.Header().Set("Cache-Control", "no-cache")
    w.Header().Set("X-Accel-Buffering", "no")
    // Non-EventSource requests only get the headers.
    if r.Header.Get("Accept") != "text/event-stream" {
        w.WriteHeader(http.StatusOK)
        return
    }
    flusher, ok := w.(http.Flusher)
    if !ok {
        w.WriteHeader(http.StatusOK)
        return
    }
    ctx := r.Context()
    ch, unsub, err := h.svc.Subscribe(ctx, id)
    if err != nil {
        h.writeError(w, r, err)
        return
    }
    defer unsub()
    ticker := time.NewTicker(h.heartbeat)
    defer ticker.Stop()

    initial, _ := json.Marshal(app.Event{Type: app.EventState, Session: id, State: snap.State})
    _, _ = fmt.Fprintf(w, "event: update\ndata: %s\n\n", initial)
    flusher.Flush()
    for {
        select {
        case <-ctx.Done():
            return
        case <-ticker.C:
            _, _ = io.WriteString(w, ": ping\n\n")
            flusher.Flush()
        case b, ok := <-ch:
            if !ok {
                return
            }
            _, _ = fmt.Fprintf(w, "event: update\ndata: %s\n\n", b)
            flusher.Flush()
        }
    }
}

// ws pushes the same event stream over a websocket. Inbound frames are
// only read to service control messages.
func (h *handlers) ws(w http.ResponseWriter, r *http.Request) {
    id := chi.URLParam(r, "id")
    snap, ok := h.svc.Get(id)
    if !ok {
        h.writeError(w, r, app.ErrNotFound)
        return
    }
    conn, err := h.upgrader.Upgrade(w, r, nil)
    if err != nil {
        h.log.Warn().Err(err).Str("session", id).Msg("websocket upgrade")
        return
    }
    defer conn.Close()

    ctx := r.Context()
    ch, unsub, err := h.svc.Subscribe(ctx, id)
    if err != nil {
        return
    }
    defer unsub()

    done := make(chan struct{})
    go func() {
        defer close(done)
        conn.SetReadLimit(maxBody)
        _ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
        conn.SetPongHandler(func(string) error {
            return conn.SetReadDeadline(time.Now().Add(wsPongWait))
        })
        for {
            if _, _, err := conn.ReadMessage(); err != nil {
                if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
                    h.log.Debug().Err(err).Str("session", id).Msg("websocket read")
                }
                return
            }
        }
    }()

    write := func(kind int, b []byte) error {
        _ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
        return conn.WriteMessage(kind, b)
    }
    initial, _ := json.Marshal(app.Event{Type: app.EventState, Session: id, State: snap.State})
    if err := write(websocket.TextMessage, initial); err != nil {
        return
    }
    ping := time.NewTicker(wsPingInterval)
    defer ping.Stop()
    for {
        select {
        case <-done:
            return
        case <-ctx.Done():
            return
        case <-ping.C:
            if err := write(websocket.PingMessage, nil); err != nil {
                return
            }
        case b, ok := <-ch:
            if !ok {
                _ = write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
                return
            }
            if err := write(websocket.TextMessage, b); err != nil {
                return
            }
        }
    }
}
