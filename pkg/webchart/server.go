package webchart

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/plotto/pkg/config"
)

// Server wires the bus, conversation manager, chat service and HTTP surface
// together and runs them until interrupted.
type Server struct {
	cfg     *config.Config
	bus     *gochannel.GoChannel
	manager *ConvManager
	service *ChatService
	httpSrv *http.Server
	logger  zerolog.Logger
}

func NewServer(ctx context.Context, cfg *config.Config, generator Generator, logger zerolog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server requires a config")
	}
	bus := gochannel.NewGoChannel(gochannel.Config{}, watermill.NopLogger{})
	manager := NewConvManager(bus, cfg.ConnIdleTimeout, cfg.InactivityTimeout, logger)
	service, err := NewChatService(ctx, manager, generator, logger)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	NewHandlers(service, logger).Mount(mux)

	return &Server{
		cfg:     cfg,
		bus:     bus,
		manager: manager,
		service: service,
		httpSrv: &http.Server{Addr: cfg.Addr, Handler: mux},
		logger:  logger.With().Str("component", "server").Logger(),
	}, nil
}

func (s *Server) ChatService() *ChatService { return s.service }

func (s *Server) Run(ctx context.Context) error {
	if s == nil || s.httpSrv == nil {
		return errors.New("server is not initialized")
	}
	eg := errgroup.Group{}
	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()

	eg.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
			s.logger.Info().Msg("received interrupt signal, shutting down gracefully...")
		case <-srvCtx.Done():
		}
		srvCancel()

		shutdownBase := context.WithoutCancel(ctx)
		shutdownCtx, cancel := context.WithTimeout(shutdownBase, 30*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error().Err(err).Msg("http shutdown error")
			return err
		}
		s.manager.Shutdown()
		if err := s.bus.Close(); err != nil {
			s.logger.Error().Err(err).Msg("bus close error")
		}
		s.logger.Info().Msg("server shutdown complete")
		return nil
	})

	eg.Go(func() error {
		s.logger.Info().Str("addr", s.httpSrv.Addr).Msg("starting chart chat server")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error().Err(err).Msg("http listen error")
			return err
		}
		return nil
	})

	return eg.Wait()
}
