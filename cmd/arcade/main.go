package main

import (
    "context"
    "errors"
    "fmt"
    "io"
    "net/http"
    "os"
    "os/signal"
    "syscall"
    "time"

    "github.com/rs/zerolog"
    "github.com/rs/zerolog/log"
    "github.com/spf13/cobra"

    "github.com/jaminalder/codex-arcade/internal/app"
    "github.com/jaminalder/codex-arcade/internal/config"
    "github.com/jaminalder/codex-arcade/internal/domain"
    "github.com/jaminalder/codex-arcade/internal/feedback"
    "github.com/jaminalder/codex-arcade/internal/logging"
    "github.com/jaminalder/codex-arcade/internal/random"
    "github.com/jaminalder/codex-arcade/internal/sched"
    "github.com/jaminalder/codex-arcade/internal/scores"
    "github.com/jaminalder/codex-arcade/internal/tictactoe"
    "github.com/jaminalder/codex-arcade/internal/web"
)

func main() {
    if err := newRootCmd().Execute(); err != nil {
        log.Error().Err(err).Msg("arcade exited")
        os.Exit(1)
    }
}

func newRootCmd() *cobra.Command {
    root := &cobra.Command{
        Use:           "arcade",
        Short:         "Tic-tac-toe, memory match and number guess",
        SilenceUsage:  true,
        SilenceErrors: true,
    }
    root.AddCommand(newServeCmd(), newSimulateCmd())
    return root
}

func newServeCmd() *cobra.Command {
    var envFile, addr, dbPath, level string
    cmd := &cobra.Command{
        Use:   "serve",
        Short: "Run the local HTTP adapter",
        RunE: func(cmd *cobra.Command, args []string) error {
            var files []string
            if envFile != "" {
                files = append(files, envFile)
            }
            cfg, err := config.Load(files...)
            if err != nil {
                return err
            }
            if cmd.Flags().Changed("addr") {
                cfg.Addr = addr
            }
            if cmd.Flags().Changed("db") {
                cfg.DBPath = dbPath
            }
            if cmd.Flags().Changed("log-level") {
                cfg.LogLevel = level
            }
            logger, err := logging.Setup(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
            if err != nil {
                return err
            }
            ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
            defer stop()
            return serve(ctx, cfg, logger)
        },
    }
    cmd.Flags().StringVar(&envFile, "env-file", "", "dotenv file to load (default .env)")
    cmd.Flags().StringVar(&addr, "addr", "", "listen address")
    cmd.Flags().StringVar(&dbPath, "db", "", "SQLite score database path")
    cmd.Flags().StringVar(&level, "log-level", "", "log level")
    return cmd
}

func openStore(ctx context.Context, path string, logger zerolog.Logger) (scores.Store, func() error, error) {
    if path == "" {
        return scores.NewMemoryStore(), func() error { return nil }, nil
    }
    db, err := scores.OpenSQLite(path)
    if err != nil {
        return nil, nil, err
    }
    all, err := db.All(ctx)
    if err != nil {
        _ = db.Close()
        return nil, nil, fmt.Errorf("load best scores: %w", err)
    }
    logger.Info().Str("path", path).Int("records", len(all)).Msg("opened score database")
    return db, db.Close, nil
}

func serve(ctx context.Context, cfg config.Config, logger zerolog.Logger) error {
    store, closeStore, err := openStore(ctx, cfg.DBPath, logger)
    if err != nil {
        return err
    }
    defer func() {
        if err := closeStore(); err != nil {
            logger.Warn().Err(err).Msg("close score store")
        }
    }()

    svc := app.NewService(app.Options{
        Scores:        store,
        Settings:      feedback.NewSettings(cfg.Sound, cfg.Vibration),
        OpponentDelay: cfg.OpponentDelay,
        MatchDelay:    cfg.MatchDelay,
        MismatchDelay: cfg.MismatchDelay,
        Logger:        &logger,
    })
    defer svc.Close()

    srv := &http.Server{
        Addr:              cfg.Addr,
        Handler:           web.NewServer(svc, web.Options{Logger: &logger}),
        ReadHeaderTimeout: 5 * time.Second,
    }
    errc := make(chan error, 1)
    go func() {
        logger.Info().Str("addr", cfg.Addr).Bool("sqlite", cfg.DBPath != "").Msg("starting arcade")
        errc <- srv.ListenAndServe()
    }()

    select {
    case err := <-errc:
        if errors.Is(err, http.ErrServerClosed) {
            return nil
        }
        return err
    case <-ctx.Done():
    }
    logger.Info().Msg("shutting down")
    shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
    defer cancel()
    // SSE and websocket streams end when their sessions close.
    svc.Close()
    return srv.Shutdown(shutdownCtx)
}

func newSimulateCmd() *cobra.Command {
    var (
        difficulty string
        games      int
        seed       uint64
    )
    cmd := &cobra.Command{
        Use:   "simulate",
        Short: "Play a random human against the opponent and print tallies",
        RunE: func(cmd *cobra.Command, args []string) error {
            d, err := domain.ParseDifficulty(difficulty)
            if err != nil {
                return err
            }
            if games < 1 {
                return fmt.Errorf("games must be at least 1, got %d", games)
            }
            if !cmd.Flags().Changed("seed") {
                if seed, err = random.NewSeed(); err != nil {
                    return err
                }
            }
            t, err := simulate(d, games, seed)
            if err != nil {
                return err
            }
            t.print(cmd.OutOrStdout(), d, seed)
            return nil
        },
    }
    cmd.Flags().StringVar(&difficulty, "difficulty", "hard", "easy, medium or hard")
    cmd.Flags().IntVar(&games, "games", 100, "number of matches")
    cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (default: random)")
    return cmd
}

type tally struct {
    Games, HumanWins, OpponentWins, Draws int
}

func (t tally) print(w io.Writer, d domain.Difficulty, seed uint64) {
    fmt.Fprintf(w, "difficulty=%s seed=%d games=%d\n", d, seed, t.Games)
    fmt.Fprintf(w, "human wins:    %d\n", t.HumanWins)
    fmt.Fprintf(w, "opponent wins: %d\n", t.OpponentWins)
    fmt.Fprintf(w, "draws:         %d\n", t.Draws)
}

// simulate drives a real engine on a virtual clock; the human picks
// uniformly among empty cells.
func simulate(d domain.Difficulty, games int, seed uint64) (tally, error) {
    var t tally
    clock := sched.NewManual()
    human := random.New(seed)
    nop := zerolog.Nop()
    e := tictactoe.New(tictactoe.Options{
        Scheduler: clock,
        Rand:      random.New(seed + 1),
        Logger:    &nop,
        OnGameOver: func(r domain.Result) {
            t.Games++
            switch {
            case r.Status == domain.Draw:
                t.Draws++
            case r.Winner == domain.Human:
                t.HumanWins++
            default:
                t.OpponentWins++
            }
        },
    })
    defer e.Close()
    if err := e.SelectDifficulty(d); err != nil {
        return t, err
    }
    for t.Games < games {
        st := e.State()
        if st.Phase == tictactoe.GameOver {
            if err := e.ResetGame(); err != nil {
                return t, err
            }
            continue
        }
        if err := e.PlaceMark(random.Pick(human, st.Board.EmptyCells())); err != nil {
            return t, err
        }
        clock.Flush()
    }
    return t, nil
}
