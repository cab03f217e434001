// Package multipart decodes multipart/form-data request bodies.
//
// The decoder works on a fully buffered body. It splits on the boundary
// delimiter and never re-encodes payload bytes, so binary file parts survive
// byte-for-byte as long as the boundary does not occur inside a payload.
// Malformed parts are dropped instead of failing the whole body.
package multipart

import (
	"bytes"
	"strings"
)

var (
	crlf       = []byte("\r\n")
	headerEnd  = []byte("\r\n\r\n")
	nameAttr   = "name=\""
	fileAttr   = "filename=\""
	boundaryEq = "boundary="
)

// File is a decoded file part.
type File struct {
	Filename    string
	Data        []byte
	ContentType string // empty when the part carried no Content-Type header
}

// Result holds the named fields and files of a decoded body.
type Result struct {
	Fields map[string]string
	Files  map[string]File
}

// Field returns the value of a plain form field.
func (result *Result) Field(name string) (string, bool) {
	if result == nil {
		return "", false
	}
	value, found := result.Fields[name]
	return value, found
}

// File returns a decoded file part.
func (result *Result) File(name string) (File, bool) {
	if result == nil {
		return File{}, false
	}
	file, found := result.Files[name]
	return file, found
}

// Parse decodes body using the given boundary token.
func Parse(body []byte, boundary string) *Result {
	result := &Result{
		Fields: make(map[string]string),
		Files:  make(map[string]File),
	}
	if boundary == "" {
		return result
	}

	parts := bytes.Split(body, []byte("--"+boundary))
	if len(parts) < 3 {
		return result
	}

	// First segment is the preamble, last one the closing "--" and epilogue.
	for _, part := range parts[1 : len(parts)-1] {
		part = bytes.TrimPrefix(part, crlf)
		part = bytes.TrimSuffix(part, crlf)

		headerEndIndex := bytes.Index(part, headerEnd)
		if headerEndIndex < 0 {
			continue
		}

		headers := parseHeaders(part[:headerEndIndex])
		data := part[headerEndIndex+len(headerEnd):]

		disposition, found := headers["content-disposition"]
		if !found {
			continue
		}

		name, found := attribute(disposition, nameAttr)
		if !found {
			continue
		}

		if filename, isFile := attribute(disposition, fileAttr); isFile {
			result.Files[name] = File{
				Filename:    filename,
				Data:        bytes.Clone(data),
				ContentType: headers["content-type"],
			}
			continue
		}

		result.Fields[name] = string(data)
	}

	return result
}

// Boundary extracts the boundary parameter of a multipart Content-Type value.
func Boundary(contentType string) (string, bool) {
	index := strings.Index(strings.ToLower(contentType), boundaryEq)
	if index < 0 {
		return "", false
	}

	value := contentType[index+len(boundaryEq):]
	if end := strings.IndexByte(value, ';'); end >= 0 {
		value = value[:end]
	}
	value = strings.Trim(strings.TrimSpace(value), "\"")

	return value, value != ""
}

func parseHeaders(block []byte) map[string]string {
	headers := make(map[string]string)
	for _, line := range bytes.Split(block, crlf) {
		colon := bytes.IndexByte(line, ':')
		if colon < 0 {
			continue
		}

		name := strings.ToLower(string(bytes.TrimSpace(line[:colon])))
		headers[name] = string(bytes.TrimSpace(line[colon+1:]))
	}
	return headers
}

// attribute finds key="value" in a Content-Disposition value. The key has to
// start the parameter, so looking up name=" never matches inside filename=".
func attribute(disposition, key string) (string, bool) {
	offset := 0
	for {
		index := strings.Index(disposition[offset:], key)
		if index < 0 {
			return "", false
		}
		index += offset

		if index == 0 || disposition[index-1] == ' ' || disposition[index-1] == ';' {
			start := index + len(key)
			end := strings.IndexByte(disposition[start:], '"')
			if end <= 0 {
				return "", false
			}
			return disposition[start : start+end], true
		}

		offset = index + len(key)
	}
}
