package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/MinnaSync/minna-listen/api"
	"github.com/MinnaSync/minna-listen/config"
	"github.com/MinnaSync/minna-listen/internal/auth"
	"github.com/MinnaSync/minna-listen/internal/logger"
	"github.com/MinnaSync/minna-listen/internal/playback"
	"github.com/MinnaSync/minna-listen/internal/room"
	"github.com/MinnaSync/minna-listen/internal/session"
	"github.com/MinnaSync/minna-listen/internal/ws"
)

func main() {
	conf := config.MustLoad()
	logger.Init(conf.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf); err != nil {
		logger.Log.Error("Exiting.", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, conf config.Config) error {
	clock := clockwork.NewRealClock()
	tokens := auth.NewTokenStore(conf.AccessToken)
	rooms := room.NewClient(conf.ServerURL, tokens)

	probe := &http.Client{Timeout: 15 * time.Second}
	media := playback.NewVirtualMedia(clock, playback.HLSProbe(probe), conf.TimeUpdateInterval)
	defer media.Close()

	channel := ws.DefaultChannelConfig()
	channel.MaxReconnectAttempts = conf.ReconnectMaxAttempts
	channel.ReconnectBaseDelay = conf.ReconnectBaseDelay
	channel.ReconnectMaxDelay = conf.ReconnectMaxDelay
	channel.PingInterval = conf.PingInterval
	channel.WriteTimeout = conf.WriteTimeout
	channel.ReadTimeout = conf.ReadTimeout
	channel.MaxMessageSize = conf.MaxMessageSize

	s, err := session.New(session.Config{
		RoomCode:    conf.RoomCode,
		ServerURL:   conf.ServerURL,
		Channel:     channel,
		SettleDelay: conf.SettleDelay,
		StartDelay:  conf.StartDelay,
		AlertTTL:    conf.AlertTTL,
		StatusTTL:   conf.StatusTTL,
		Clock:       clock,
	}, tokens, rooms, media)
	if err != nil {
		return err
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	opts := api.Options{
		Probe:        probe,
		AllowOrigins: conf.AllowOrigins,
	}
	api.Register(r, s, opts)

	srv := &http.Server{
		Addr:              ":" + conf.Port,
		Handler:           api.CORS(r, opts),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Only a rejected credential stops the process. Other terminal closes
	// leave the control surface up so the room state can still be read.
	g.Go(func() error {
		err := s.Run(gctx)
		if errors.Is(err, session.ErrAuthRejected) {
			return err
		}
		if err != nil {
			logger.Log.Warn("Session ended.", "room", conf.RoomCode, "err", err)
		}
		return nil
	})

	g.Go(func() error {
		logger.Log.Info("Control surface listening.", "addr", srv.Addr)

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
