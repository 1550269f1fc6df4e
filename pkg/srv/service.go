package srv

import (
	"context"
	"fmt"
	"time"

	"github.com/sandevgo/tuskrelay/pkg/log"
)

// DefaultShutdownTimeout bounds how long ShutdownServices waits for each service.
const DefaultShutdownTimeout = 10 * time.Second

type Service interface {
	Start(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// Named lets a service pick the label used in lifecycle logs.
type Named interface {
	Name() string
}

func nameOf(s Service) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}

func StartServices(ctx context.Context, services []Service) {
	logger := log.FromCtx(ctx)
	for _, service := range services {
		go func(service Service) {
			if err := service.Start(ctx); err != nil {
				logger.Fatal().Err(err).Msgf("%s failed to start", nameOf(service))
			}
		}(service)
	}
}

// ShutdownServices blocks until ctx is done, then stops services in reverse order so
// that listeners go away before the stores they write to.
func ShutdownServices(ctx context.Context, services []Service) {
	<-ctx.Done()
	logger := log.FromCtx(ctx)

	base := context.WithoutCancel(ctx)
	for i := len(services) - 1; i >= 0; i-- {
		service := services[i]
		sctx, cancel := context.WithTimeout(base, DefaultShutdownTimeout)
		if err := service.Shutdown(sctx); err != nil {
			logger.Error().Err(err).Msgf("%s failed to shutdown", nameOf(service))
		}
		cancel()
	}
}
