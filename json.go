package captionkit

import (
	"context"
	"encoding/json"
	"fmt"
)

// GetJSON performs Get and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, endpoint string, params Params, out interface{}, opts ...RequestOption) error {
	data, err := c.Get(ctx, endpoint, params, opts...)
	if err != nil {
		return err
	}
	return decodeJSON(data, out)
}

// PostJSON performs Post and decodes the response into out, if out is non-nil.
func (c *Client) PostJSON(ctx context.Context, endpoint string, body, out interface{}, opts ...RequestOption) error {
	data, err := c.Post(ctx, endpoint, body, opts...)
	if err != nil {
		return err
	}
	return decodeJSON(data, out)
}

// PutJSON performs Put and decodes the response into out, if out is non-nil.
func (c *Client) PutJSON(ctx context.Context, endpoint string, body, out interface{}, opts ...RequestOption) error {
	data, err := c.Put(ctx, endpoint, body, opts...)
	if err != nil {
		return err
	}
	return decodeJSON(data, out)
}

// DeleteJSON performs Delete and decodes the response into out, if out is non-nil.
func (c *Client) DeleteJSON(ctx context.Context, endpoint string, out interface{}, opts ...RequestOption) error {
	data, err := c.Delete(ctx, endpoint, opts...)
	if err != nil {
		return err
	}
	return decodeJSON(data, out)
}

// UploadFileJSON performs UploadFile and decodes the response into out.
func (c *Client) UploadFileJSON(ctx context.Context, endpoint string, file File, fields []Field, out interface{}, opts ...RequestOption) error {
	data, err := c.UploadFile(ctx, endpoint, file, fields, opts...)
	if err != nil {
		return err
	}
	return decodeJSON(data, out)
}

func decodeJSON(data json.RawMessage, out interface{}) error {
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("captionkit: decoding response: %w", err)
	}
	return nil
}
