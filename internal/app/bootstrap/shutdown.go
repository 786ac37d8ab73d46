// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown runs after the HTTP server has drained. It stops the background
// jobs, drains the request recorders and disconnects every Mongo client,
// honoring ctx's deadline.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	var firstErr error

	if taskRunner != nil {
		logger.Info("stopping background task runner")
		if err := taskRunner.Stop(ctx); err != nil {
			logger.Warn("background task runner did not stop cleanly", zap.Error(err))
			firstErr = err
		}
	}

	if jobRunner != nil {
		logger.Info("stopping job runner")
		if err := jobRunner.Stop(ctx); err != nil {
			logger.Warn("job runner did not stop cleanly", zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	// Let in-flight ledger and stats writes land before the clients close.
	if requestLedger != nil {
		requestLedger.Wait()
	}
	if apiStats != nil {
		apiStats.Wait()
	}

	logger.Info("disconnecting MongoDB clients", zap.Int("clients", len(deps.Clients)))
	if err := disconnectAll(ctx, deps.Clients, logger); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}
