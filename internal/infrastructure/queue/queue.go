package queue

import (
	"fmt"
	"strings"

	"gissues/internal/bootstrap/config"
	"gissues/internal/ports"
)

// Queue is both sides of a task transport.
type Queue interface {
	ports.TaskQueue
	ports.TaskConsumer
}

// New picks the driver named in cfg.Driver.
func New(cfg config.QueueConfig) (Queue, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "local":
		return NewLocalQueue(cfg.Workers, cfg.Buffer), nil
	case "nats":
		q, err := DialNATS(cfg)
		if err != nil {
			return nil, err
		}
		return q, nil
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", cfg.Driver)
	}
}
