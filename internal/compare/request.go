package compare

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"os"

	"github.com/example/image-compare/internal/imagesource"
)

const (
	FieldImage1 = "image1"
	FieldImage2 = "image2"
	MIMEJPEG    = "image/jpeg"
)

// Part is one file attachment of a comparison request.
type Part struct {
	Field       string
	Filename    string
	ContentType string
	open        func() (io.ReadCloser, error)
}

// Request is a built multipart payload ready to be sent.
type Request struct {
	parts []Part
}

// Parts returns the attachments in the order they were added.
func (r *Request) Parts() []Part {
	return append([]Part(nil), r.parts...)
}

// encode writes the parts as multipart/form-data and returns the body and its
// content type.
func (r *Request) encode() (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for _, part := range r.parts {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, part.Field, part.Filename))
		header.Set("Content-Type", part.ContentType)

		dst, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("failed to create part %s: %w", part.Field, err)
		}
		src, err := part.open()
		if err != nil {
			return nil, "", fmt.Errorf("failed to open part %s: %w", part.Field, err)
		}
		_, err = io.Copy(dst, src)
		src.Close()
		if err != nil {
			return nil, "", fmt.Errorf("failed to write part %s: %w", part.Field, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close multipart writer: %w", err)
	}
	return body, writer.FormDataContentType(), nil
}

// RequestBuilder assembles a Request from typed file attachments.
type RequestBuilder struct {
	parts []Part
	seen  map[string]bool
	err   error
}

func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{seen: make(map[string]bool)}
}

// AddFile attaches the file at path under field.
func (b *RequestBuilder) AddFile(field, filename, contentType, path string) *RequestBuilder {
	return b.add(field, filename, contentType, func() (io.ReadCloser, error) {
		return os.Open(path)
	})
}

// AddBytes attaches an in-memory payload under field.
func (b *RequestBuilder) AddBytes(field, filename, contentType string, data []byte) *RequestBuilder {
	return b.add(field, filename, contentType, func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
}

func (b *RequestBuilder) add(field, filename, contentType string, open func() (io.ReadCloser, error)) *RequestBuilder {
	if b.err != nil {
		return b
	}
	switch {
	case field == "":
		b.err = errors.New("part field name is required")
	case b.seen[field]:
		b.err = fmt.Errorf("duplicate part %q", field)
	case contentType == "":
		b.err = fmt.Errorf("part %q has no content type", field)
	}
	if b.err != nil {
		return b
	}
	if filename == "" {
		filename = field
	}
	b.seen[field] = true
	b.parts = append(b.parts, Part{Field: field, Filename: filename, ContentType: contentType, open: open})
	return b
}

// Build returns the first error recorded while adding parts, if any.
func (b *RequestBuilder) Build() (*Request, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.parts) == 0 {
		return nil, errors.New("request has no parts")
	}
	return &Request{parts: append([]Part(nil), b.parts...)}, nil
}

// NewImagePairRequest builds the fixed two-part comparison payload.
func NewImagePairRequest(first, second *imagesource.Asset) (*Request, error) {
	if first == nil || second == nil {
		return nil, errors.New("both images are required")
	}
	return NewRequestBuilder().
		AddFile(FieldImage1, FieldImage1+".jpg", MIMEJPEG, first.URI).
		AddFile(FieldImage2, FieldImage2+".jpg", MIMEJPEG, second.URI).
		Build()
}
