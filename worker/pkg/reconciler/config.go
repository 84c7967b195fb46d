package reconciler

import (
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/paissahouse/paissadb/queue"
)

type Config struct {
	Logger *slog.Logger
	Clock  clockwork.Clock
	DB     *pgxpool.Pool
	Queue  *queue.Queue
}

func (cfg *Config) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Clock == nil {
		return errors.New("clock is required")
	}
	if cfg.DB == nil {
		return errors.New("db is required")
	}
	if cfg.Queue == nil {
		return errors.New("queue is required")
	}
	return nil
}
