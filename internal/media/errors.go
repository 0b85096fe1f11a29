package media

import (
	"errors"
	"fmt"
)

var (
	ErrImageNotFound = errors.New("image not found")
	ErrImageDecode   = errors.New("unsupported or corrupt image data")
	ErrFetch         = errors.New("image fetch failed")
	ErrNotAnImage    = errors.New("resource is not an image")
)

// ImageError reports a failure tied to one image source.
type ImageError struct {
	Source string
	Err    error
}

func (e *ImageError) Error() string {
	return fmt.Sprintf("image %s: %v", e.Source, e.Err)
}

func (e *ImageError) Unwrap() error {
	return e.Err
}
