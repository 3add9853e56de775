package cli

import (
	"errors"
	"os"

	"github.com/aidanlsb/kmd/internal/action"
	"github.com/aidanlsb/kmd/internal/config"
	"github.com/aidanlsb/kmd/internal/frontmatter"
	"github.com/aidanlsb/kmd/internal/lastresults"
	"github.com/aidanlsb/kmd/internal/model"
	"github.com/aidanlsb/kmd/internal/pipeline"
	"github.com/aidanlsb/kmd/internal/selection"
	"github.com/aidanlsb/kmd/internal/store"
	"github.com/aidanlsb/kmd/internal/workspace"
)

// Error codes for structured error responses.
// These codes are stable and can be relied upon by agents.
const (
	// Workspace errors
	ErrWorkspaceNotFound     = "WORKSPACE_NOT_FOUND"
	ErrWorkspaceNotSpecified = "WORKSPACE_NOT_SPECIFIED"
	ErrConfigInvalid         = "CONFIG_INVALID"

	// Item errors
	ErrItemNotFound    = "ITEM_NOT_FOUND"
	ErrItemInvalid     = "ITEM_INVALID"
	ErrUnknownItemType = "UNKNOWN_ITEM_TYPE"
	ErrNotArchived     = "NOT_ARCHIVED"
	ErrSlugCollision   = "SLUG_COLLISION"

	// File errors
	ErrFileEmpty            = "FILE_EMPTY"
	ErrFileNotText          = "FILE_NOT_TEXT"
	ErrMetadataUnterminated = "METADATA_UNTERMINATED"
	ErrMetadataMalformed    = "METADATA_MALFORMED"
	ErrMetadataMissing      = "METADATA_MISSING"
	ErrFileOutsideWorkspace = "FILE_OUTSIDE_WORKSPACE"

	// Action errors
	ErrActionNotFound     = "ACTION_NOT_FOUND"
	ErrPreconditionFailed = "PRECONDITION_FAILED"
	ErrActionFailed       = "ACTION_FAILED"

	// Selection errors
	ErrNoHistory   = "NO_SELECTION_HISTORY"
	ErrNoSelection = "NO_SELECTION"

	// Input errors
	ErrInvalidInput    = "INVALID_INPUT"
	ErrMissingArgument = "MISSING_ARGUMENT"

	// General errors
	ErrInternal = "INTERNAL_ERROR"
)

// Warning codes for non-fatal issues.
const (
	WarnIndexSkipped = "INDEX_SKIPPED"
	WarnNoAPIKey     = "NO_API_KEY"
)

// codeFor maps an error to its stable code. Unrecognized errors get
// fallback.
func codeFor(err error, fallback string) string {
	switch {
	case errors.Is(err, workspace.ErrNotWorkspace):
		return ErrWorkspaceNotFound
	case errors.Is(err, config.ErrInvalidSettings), errors.Is(err, config.ErrInvalidConfig):
		return ErrConfigInvalid
	case errors.Is(err, action.ErrUnknownAction):
		return ErrActionNotFound
	case errors.Is(err, action.ErrPreconditionFailed):
		return ErrPreconditionFailed
	case errors.Is(err, model.ErrUnknownItemType), errors.Is(err, model.ErrUnknownFolder):
		return ErrUnknownItemType
	case errors.Is(err, frontmatter.ErrEmptyFile):
		return ErrFileEmpty
	case errors.Is(err, frontmatter.ErrNotTextFile):
		return ErrFileNotText
	case errors.Is(err, frontmatter.ErrUnterminatedMetadata):
		return ErrMetadataUnterminated
	case errors.Is(err, frontmatter.ErrMalformedMetadata):
		return ErrMetadataMalformed
	case errors.Is(err, store.ErrMissingMetadata):
		return ErrMetadataMissing
	case errors.Is(err, store.ErrNotInWorkspace):
		return ErrFileOutsideWorkspace
	case errors.Is(err, store.ErrSlugCollision):
		return ErrSlugCollision
	case errors.Is(err, store.ErrNotArchived):
		return ErrNotArchived
	case errors.Is(err, store.ErrBinaryItem), errors.Is(err, model.ErrNoStorePath):
		return ErrItemInvalid
	case errors.Is(err, selection.ErrNoHistory):
		return ErrNoHistory
	case errors.Is(err, pipeline.ErrNotURL), errors.Is(err, pipeline.ErrDirectoryArgs),
		errors.Is(err, lastresults.ErrInvalidNumber), errors.Is(err, lastresults.ErrNumberOutOfRange),
		errors.Is(err, lastresults.ErrNoLastResults):
		return ErrInvalidInput
	case errors.Is(err, pipeline.ErrNothingToDo):
		return ErrMissingArgument
	case errors.Is(err, os.ErrNotExist):
		return ErrItemNotFound
	}
	return fallback
}
