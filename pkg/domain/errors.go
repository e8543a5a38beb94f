package domain

import "errors"

// ErrThreadNotFound is returned when a thread id has no persisted snapshot.
var ErrThreadNotFound = errors.New("thread not found")

// ErrNoPendingSuspension is returned when resume is called on a thread with
// no outstanding suspension request. Checked before any state mutation.
var ErrNoPendingSuspension = errors.New("no pending suspension to resume")

// ErrUnexpectedTermination is returned when a run reaches graph end with
// neither a suspension request nor a final response recorded.
var ErrUnexpectedTermination = errors.New("graph terminated without suspension or response")
