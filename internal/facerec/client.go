// Package facerec talks to the face embedding service that detects faces in a
// frame and computes their encodings.
package facerec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/kozaktomas/face-gate/internal/constants"
	"github.com/kozaktomas/face-gate/internal/facematch"
)

const defaultServiceURL = "http://localhost:8000"

// ErrNoFace is returned by Encode when no detected face overlaps the requested box.
var ErrNoFace = errors.New("no face at the requested location")

// FaceDetection represents a single detected face
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// FaceResponse represents the response from the face embedding endpoint
type FaceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// Client is an HTTP client for the face embedding service.
type Client struct {
	baseURL string
	client  *http.Client
	scale   float64
	quality int
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = defaultServiceURL
	}
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		scale:   constants.DetectionScale,
		quality: 90,
	}
}

// postFrame encodes img as JPEG and posts it as a multipart form to endpoint.
func (c *Client) postFrame(ctx context.Context, endpoint string, img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if err := jpeg.Encode(part, img, &jpeg.Options{Quality: c.quality}); err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// Faces detects faces in img and returns them with their embeddings.
func (c *Client) Faces(ctx context.Context, img image.Image) (*FaceResponse, error) {
	body, err := c.postFrame(ctx, "/embed/face", img)
	if err != nil {
		return nil, err
	}

	var faceResp FaceResponse
	if err := json.Unmarshal(body, &faceResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return &faceResp, nil
}

// Detect returns the face boxes in img in full-frame coordinates.
// Detection runs on a downscaled copy and the boxes are scaled back up.
func (c *Client) Detect(ctx context.Context, img image.Image) ([]image.Rectangle, error) {
	small := facematch.Downscale(img, c.scale)

	resp, err := c.Faces(ctx, small)
	if err != nil {
		return nil, err
	}

	factor := 1.0
	if small != img {
		factor = float64(img.Bounds().Dx()) / float64(small.Bounds().Dx())
	}
	origin := img.Bounds().Min

	boxes := make([]image.Rectangle, 0, len(resp.Faces))
	for _, f := range resp.Faces {
		r, ok := facematch.BBoxToRect(f.BBox)
		if !ok {
			continue
		}
		boxes = append(boxes, facematch.ScaleRect(r, factor).Add(origin))
	}
	return boxes, nil
}

// Encode returns the encoding of the face at box in img.
// The full-resolution frame is sent and the returned face that overlaps box the most is used.
func (c *Client) Encode(ctx context.Context, img image.Image, box image.Rectangle) (facematch.Encoding, error) {
	resp, err := c.Faces(ctx, img)
	if err != nil {
		return nil, err
	}

	origin := img.Bounds().Min
	rects := make([]image.Rectangle, len(resp.Faces))
	for i, f := range resp.Faces {
		if r, ok := facematch.BBoxToRect(f.BBox); ok {
			rects[i] = r.Add(origin)
		}
	}

	idx := facematch.PickFace(rects, box, constants.IoUThreshold)
	if idx < 0 {
		return nil, ErrNoFace
	}
	if len(resp.Faces[idx].Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return facematch.Encoding(resp.Faces[idx].Embedding), nil
}
