package environment

import (
	"fmt"
	"strings"
)

// ImageFormat is the closed set of encodings environment maps are published in.
type ImageFormat int

const (
	FormatJPEG ImageFormat = iota
	FormatHDR
)

// UnsupportedFormatError is returned when an environment is requested in a format outside ImageFormat.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported environment image format %q", e.Format)
}

// FormatFor maps the rendering parameters' HDR toggle to an ImageFormat.
func FormatFor(useHDR bool) ImageFormat {
	if useHDR {
		return FormatHDR
	}
	return FormatJPEG
}

// ParseImageFormat parses "jpeg", "jpg" or "hdr" case-insensitively.
func ParseImageFormat(s string) (ImageFormat, error) {
	switch strings.ToLower(strings.TrimPrefix(s, ".")) {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "hdr":
		return FormatHDR, nil
	default:
		return 0, &UnsupportedFormatError{Format: s}
	}
}

func (f ImageFormat) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatHDR:
		return "hdr"
	default:
		return fmt.Sprintf("ImageFormat(%d)", int(f))
	}
}

// Extension returns the file extension, including the dot, used for images of this format.
func (f ImageFormat) Extension() (string, error) {
	switch f {
	case FormatJPEG:
		return ".jpg", nil
	case FormatHDR:
		return ".hdr", nil
	default:
		return "", &UnsupportedFormatError{Format: f.String()}
	}
}

// MimeType returns the MIME type recorded on images of this format.
func (f ImageFormat) MimeType() (string, error) {
	switch f {
	case FormatJPEG:
		return "image/jpeg", nil
	case FormatHDR:
		return "image/vnd.radiance", nil
	default:
		return "", &UnsupportedFormatError{Format: f.String()}
	}
}
