package segment

import "errors"

// Sentinel errors for segmentation.
var (
	// ErrEmptyAPIKey indicates the language model API key was not provided.
	ErrEmptyAPIKey = errors.New("segmenter API key is required")

	// ErrInvalidSplit indicates an assisted split broke the segmentation contract.
	ErrInvalidSplit = errors.New("invalid assisted split")
)
