package ooxml

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrArchive     = errors.New("malformed package archive")
	ErrMissingPart = errors.New("required package part not found")
	ErrXML         = errors.New("malformed XML")
	ErrEncoding    = errors.New("unsupported text encoding")
)

// PartError reports a failure tied to a single package part.
type PartError struct {
	Part string
	Err  error
}

func (e *PartError) Error() string {
	return fmt.Sprintf("part %s: %v", e.Part, e.Err)
}

func (e *PartError) Unwrap() error {
	return e.Err
}

// archiveError tags ZIP format failures with ErrArchive and leaves I/O
// failures untouched.
func archiveError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, zip.ErrFormat) || errors.Is(err, zip.ErrAlgorithm) || errors.Is(err, zip.ErrChecksum) {
		return fmt.Errorf("%w: %w", ErrArchive, err)
	}
	return err
}

// XMLError classifies a decoder failure as ErrEncoding or ErrXML.
func XMLError(err error) error {
	if err == nil || errors.Is(err, ErrEncoding) || errors.Is(err, ErrXML) {
		return err
	}
	var syntaxErr *xml.SyntaxError
	if errors.As(err, &syntaxErr) {
		if strings.Contains(syntaxErr.Msg, "UTF-8") {
			return fmt.Errorf("%w: %w", ErrEncoding, err)
		}
		return fmt.Errorf("%w: %w", ErrXML, err)
	}
	if strings.Contains(err.Error(), "XML syntax error") {
		return fmt.Errorf("%w: %w", ErrXML, err)
	}
	return err
}
