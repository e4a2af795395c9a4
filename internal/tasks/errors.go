package tasks

import "errors"

// ErrTaskNotFound is returned when a task id or name is not registered.
var ErrTaskNotFound = errors.New("task not found")

// ErrTaskExists is returned when registering a task whose name is taken.
var ErrTaskExists = errors.New("task already exists")
