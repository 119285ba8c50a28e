package captionkit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
)

// RawBody is a request body sent untouched with its content type.
type RawBody struct {
	ContentType string
	Data        []byte
}

// File is an upload payload. Content is read once, when the request is built.
type File struct {
	Name        string
	ContentType string
	Content     io.Reader
}

// Field is an extra multipart form field. Fields keep their order.
type Field struct {
	Name  string
	Value string
}

// uploadFieldName is the form field the service reads the file from.
const uploadFieldName = "file"

// NewMultipartBody encodes file and fields as multipart/form-data. The whole
// payload is buffered so retries can resend it.
func NewMultipartBody(file File, fields ...Field) (*RawBody, error) {
	if file.Content == nil {
		return nil, errors.New("captionkit: upload has no content")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, uploadFieldName, escapeQuotes(file.Name)))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := w.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("captionkit: creating file part: %w", err)
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return nil, fmt.Errorf("captionkit: reading upload %q: %w", file.Name, err)
	}

	for _, f := range fields {
		if err := w.WriteField(f.Name, f.Value); err != nil {
			return nil, fmt.Errorf("captionkit: writing field %q: %w", f.Name, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("captionkit: closing multipart body: %w", err)
	}

	return &RawBody{ContentType: w.FormDataContentType(), Data: buf.Bytes()}, nil
}

// FormBody encodes values as application/x-www-form-urlencoded.
func FormBody(values url.Values) *RawBody {
	return &RawBody{
		ContentType: "application/x-www-form-urlencoded",
		Data:        []byte(values.Encode()),
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// UploadFile posts file under the "file" form field followed by fields.
// Uploads are never cached or coalesced.
func (c *Client) UploadFile(ctx context.Context, endpoint string, file File, fields []Field, opts ...RequestOption) (json.RawMessage, error) {
	return c.upload(ctx, http.MethodPost, endpoint, file, fields, opts)
}

// upload sends a multipart body with method. A GET that carries a file has
// no cache key, so it skips the cache and the in-flight registry.
func (c *Client) upload(ctx context.Context, method, endpoint string, file File, fields []Field, opts []RequestOption) (json.RawMessage, error) {
	body, err := NewMultipartBody(file, fields...)
	if err != nil {
		return nil, err
	}
	return c.send(ctx, method, endpoint, body, opts)
}
