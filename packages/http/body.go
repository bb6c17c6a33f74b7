package http

import (
	"encoding/base64"
	"io"
	"strings"
	"unicode/utf8"
)

// BodyKind tells how a response body is carried in the envelope.
type BodyKind int

const (
	BodyText BodyKind = iota
	BodyBinary
)

func (k BodyKind) String() string {
	if k == BodyBinary {
		return "binary"
	}
	return "text"
}

// ClassifyBody decides text versus binary from the content-type alone.
// Charset parameters are not inspected.
func ClassifyBody(contentType string) BodyKind {
	ct := strings.ToLower(contentType)
	switch {
	case ct == "":
		return BodyText
	case strings.HasPrefix(ct, "text/"):
		return BodyText
	case strings.HasPrefix(ct, "application/json"):
		return BodyText
	default:
		return BodyBinary
	}
}

// readText reads r as UTF-8 text. Invalid sequences are replaced with
// U+FFFD and a failed read yields "".
func readText(r io.Reader) string {
	data, err := io.ReadAll(r)
	if err != nil {
		return ""
	}
	if utf8.Valid(data) {
		return string(data)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD")
}

// readBase64 reads r fully and returns standard padded base64. A failed
// read yields the encoding of an empty payload.
func readBase64(r io.Reader) string {
	data, err := io.ReadAll(r)
	if err != nil {
		data = nil
	}
	return base64.StdEncoding.EncodeToString(data)
}
