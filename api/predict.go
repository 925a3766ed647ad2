package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-resty/resty/v2"

	"vox/encoder"
)

var mimeExt = map[string]string{
	encoder.MIMEWav:  ".wav",
	encoder.MIMEWebM: ".webm",
	encoder.MIMEM4A:  ".m4a",
}

func mimeForPath(path string) (string, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		return encoder.MIMEWav, true
	case ".webm":
		return encoder.MIMEWebM, true
	case ".m4a":
		return encoder.MIMEM4A, true
	}
	return "", false
}

// PredictRecording uploads a finished capture for emotion analysis. Empty
// recordings are rejected locally, before any network round trip. The file
// reader is constructed inside the build closure, so a refresh-and-replay
// uploads the full body again.
func (c *Client) PredictRecording(ctx context.Context, mime string, data []byte) (*Prediction, error) {
	if len(data) == 0 {
		return nil, ErrEmptyRecording
	}
	ext, ok := mimeExt[mime]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, mime)
	}
	filename := "recording" + ext

	var out Prediction
	err := c.send(ctx, reqContext{method: http.MethodPost, path: EndpointPredict}, func(req *resty.Request) {
		req.SetMultipartField("audio", filename, mime, bytes.NewReader(data))
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// PredictFile uploads a pre-existing audio file, with the MIME type derived
// from its extension.
func (c *Client) PredictFile(ctx context.Context, path string) (*Prediction, error) {
	mime, ok := mimeForPath(path)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrEmptyRecording
	}

	var out Prediction
	err = c.send(ctx, reqContext{method: http.MethodPost, path: EndpointPredict}, func(req *resty.Request) {
		req.SetMultipartField("audio", filepath.Base(path), mime, bytes.NewReader(data))
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
