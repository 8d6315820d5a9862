package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gissues/internal/errs"
	"gissues/internal/ports"
)

var ErrQueueClosed = errors.New("task queue is closed")

func validateTask(task ports.Task) error {
	if strings.TrimSpace(task.ID) == "" {
		return errors.New("task id is required")
	}
	if strings.TrimSpace(string(task.Kind)) == "" {
		return errors.New("task kind is required")
	}
	return nil
}

func encodeTask(task ports.Task) ([]byte, error) {
	if err := validateTask(task); err != nil {
		return nil, err
	}
	data, err := json.Marshal(task)
	if err != nil {
		return nil, errs.Wrap(err, "marshal task envelope")
	}
	return data, nil
}

func decodeTask(data []byte) (ports.Task, error) {
	var task ports.Task
	if err := json.Unmarshal(data, &task); err != nil {
		return ports.Task{}, errs.Wrap(err, "unmarshal task envelope")
	}
	if err := validateTask(task); err != nil {
		return ports.Task{}, fmt.Errorf("decode task envelope: %w", err)
	}
	return task, nil
}

// subjectFor maps a task kind onto "<prefix>.<kind>".
func subjectFor(prefix string, kind ports.TaskKind) string {
	return strings.TrimSuffix(prefix, ".") + "." + string(kind)
}
