package scope

import (
	"errors"
	"fmt"
)

// TaskInfo identifies a task.
type TaskInfo struct {
	Name string
}

// TaskError attributes an error to the task that returned it.
type TaskError struct {
	Task TaskInfo
	Err  error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("task %q failed: %v", e.Task.Name, e.Err)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// CauseOf returns the cause wrapped by the first [*TaskError] in err's chain,
// or err itself when there is none.
func CauseOf(err error) error {
	var te *TaskError
	if errors.As(err, &te) {
		return te.Err
	}
	return err
}
