package editor

import "errors"

var (
	ErrNoSession        = errors.New("editor: session is required")
	ErrRegionNotFound   = errors.New("editor: region not found")
	ErrNothingToUndo    = errors.New("editor: nothing to undo")
	ErrUndoInProgress   = errors.New("editor: undo in progress")
	ErrRemoteInProgress = errors.New("editor: remote operation in progress")
	ErrNoRemote         = errors.New("editor: no remote configured")
	ErrNotInGeneration  = errors.New("editor: generation requires processed mode")
	ErrNoSynchronizer   = errors.New("editor: no synchronizer configured")
)
