package blob

import (
	"ecoindex/internal/infra/blob/fs"
	"ecoindex/internal/infra/blob/memory"
)

// NewMemory returns a Store holding downloads in process memory. Nothing
// survives a restart.
func NewMemory() Store { return memory.New() }

// NewFilesystem returns a Store writing downloads beneath root, creating it
// if missing. An empty root means ./blobdata.
func NewFilesystem(root string) (Store, error) { return fs.New(root) }
