// Package common defines the sentinel errors shared by the transfer
// pipeline, the callback registry and the bot front-end. Callers should use
// errors.Is to match these values.
package common

import "errors"

var (
	// Generic lookup / permission errors.
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")

	// Transfer pipeline errors.
	ErrSizeLimitExceeded = errors.New("size limit exceeded")
	ErrDownloadFailed    = errors.New("download failed")
	ErrUploadFailed      = errors.New("upload failed")
	ErrTransferTimeout   = errors.New("transfer timeout")

	// Link minting is a degraded-success condition, not a pipeline failure.
	ErrLinkMintFailed = errors.New("link mint failed")

	// Callback registry errors.
	ErrRegistryCorrupt          = errors.New("registry corrupt")
	ErrCallbackExpiredOrMissing = errors.New("callback expired or missing")
)
