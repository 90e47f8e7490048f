package loader

import "fmt"

// ParseError reports container or document bytes that could not be decoded.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SubResourceFetchError reports the first external buffer or image that failed to load.
type SubResourceFetchError struct {
	// URI is the resolved reference that failed.
	URI string
	// Kind is "document", "buffer" or "image".
	Kind string
	Err  error
}

func (e *SubResourceFetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s %s: %v", e.Kind, e.URI, e.Err)
}

func (e *SubResourceFetchError) Unwrap() error {
	return e.Err
}

// EmptyAssetError is returned for a document that declares no scenes.
type EmptyAssetError struct {
	Path string
}

func (e *EmptyAssetError) Error() string {
	return fmt.Sprintf("asset %s has no scenes", e.Path)
}
