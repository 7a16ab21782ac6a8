package compare

import (
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/example/image-compare/internal/imagesource"
)

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestNewImagePairRequestHasTwoJPEGParts(t *testing.T) {
	first := &imagesource.Asset{URI: writeTempFile(t, "a.jpg", []byte("first"))}
	second := &imagesource.Asset{URI: writeTempFile(t, "b.jpg", []byte("second"))}

	req, err := NewImagePairRequest(first, second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body, contentType, err := req.encode()
	if err != nil {
		t.Fatalf("failed to encode: %v", err)
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" {
		t.Fatalf("unexpected content type %q: %v", contentType, err)
	}

	reader := multipart.NewReader(body, params["boundary"])
	want := []struct{ field, filename, payload string }{
		{"image1", "image1.jpg", "first"},
		{"image2", "image2.jpg", "second"},
	}
	for _, w := range want {
		part, err := reader.NextPart()
		if err != nil {
			t.Fatalf("missing part %s: %v", w.field, err)
		}
		if part.FormName() != w.field || part.FileName() != w.filename {
			t.Fatalf("unexpected part %s/%s", part.FormName(), part.FileName())
		}
		if ct := part.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Fatalf("unexpected part content type %q", ct)
		}
		data, _ := io.ReadAll(part)
		if string(data) != w.payload {
			t.Fatalf("unexpected payload %q", data)
		}
	}
	if _, err := reader.NextPart(); err != io.EOF {
		t.Fatalf("expected exactly two parts, got extra: %v", err)
	}
}

func TestNewImagePairRequestRequiresBothAssets(t *testing.T) {
	if _, err := NewImagePairRequest(&imagesource.Asset{URI: "x"}, nil); err == nil {
		t.Fatal("expected error when an asset is missing")
	}
}

func TestRequestBuilderValidation(t *testing.T) {
	tests := []struct {
		name    string
		builder *RequestBuilder
		wantErr string
	}{
		{name: "no parts", builder: NewRequestBuilder(), wantErr: "no parts"},
		{name: "empty field", builder: NewRequestBuilder().AddBytes("", "f", "image/jpeg", nil), wantErr: "field name"},
		{name: "duplicate", builder: NewRequestBuilder().
			AddBytes("image1", "a", "image/jpeg", nil).
			AddBytes("image1", "b", "image/jpeg", nil), wantErr: "duplicate"},
		{name: "no content type", builder: NewRequestBuilder().AddBytes("image1", "a", "", nil), wantErr: "content type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestRequestBuilderDefaultsFilenameAndKeepsOrder(t *testing.T) {
	req, err := NewRequestBuilder().
		AddBytes("b", "", "image/png", []byte("1")).
		AddBytes("a", "a.png", "image/png", []byte("2")).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parts := req.Parts()
	if len(parts) != 2 || parts[0].Field != "b" || parts[0].Filename != "b" || parts[1].Field != "a" {
		t.Fatalf("unexpected parts: %+v", parts)
	}
}

func TestEncodeFailsForMissingFile(t *testing.T) {
	req, err := NewRequestBuilder().AddFile("image1", "image1.jpg", MIMEJPEG, filepath.Join(t.TempDir(), "gone.jpg")).Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if _, _, err := req.encode(); err == nil {
		t.Fatal("expected encode error for a missing file")
	}
}
