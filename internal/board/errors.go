package board

import (
	"errors"
	"fmt"
)

var (
	ErrIndexNotFree   = errors.New("board index not free")
	ErrRescueExists   = errors.New("rescue already on board")
	ErrRescueNotFound = errors.New("rescue not found")
	// ErrRemoteSync marks failures of the remote case service. The local
	// change has already been applied when it is returned.
	ErrRemoteSync = errors.New("remote case service sync failed")
)

type IndexNotFreeError struct {
	Index int
}

func (e *IndexNotFreeError) Error() string {
	return fmt.Sprintf("board index %d is not free", e.Index)
}

func (e *IndexNotFreeError) Is(target error) bool {
	return target == ErrIndexNotFree
}
