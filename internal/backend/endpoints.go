package backend

import (
	"context"

	"github.com/AaronLay10/Cadence/internal/value"
)

// AudioPayload references the audio a request is about. Samples carry the
// current analysis window; Source names the file when there is one.
type AudioPayload struct {
	Source     string    `json:"source,omitempty"`
	Time       float64   `json:"time"`
	SampleRate int       `json:"sample_rate"`
	Samples    []float64 `json:"samples,omitempty"`
}

// PayloadFrom builds an AudioPayload from a port value.
func PayloadFrom(a *value.Audio) AudioPayload {
	if a == nil {
		return AudioPayload{}
	}
	return AudioPayload{Source: a.Source, Time: a.Time, SampleRate: a.SampleRate, Samples: a.Samples}
}

type BeatDetectionRequest struct {
	Audio       AudioPayload `json:"audio"`
	Sensitivity float64      `json:"sensitivity"`
}

type BeatDetectionResponse struct {
	BPM           float64 `json:"bpm"`
	Confidence    float64 `json:"confidence"`
	OnsetDetected bool    `json:"onset_detected"`
}

func (c *Client) BeatDetection(ctx context.Context, req BeatDetectionRequest) (BeatDetectionResponse, error) {
	var resp BeatDetectionResponse
	err := c.Post(ctx, PathBeatDetection, req, &resp)
	return resp, err
}

type KeyDetectionRequest struct {
	Audio AudioPayload `json:"audio"`
}

type KeyDetectionResponse struct {
	Key        string  `json:"key"`
	Scale      string  `json:"scale"`
	Confidence float64 `json:"confidence"`
}

func (c *Client) KeyDetection(ctx context.Context, req KeyDetectionRequest) (KeyDetectionResponse, error) {
	var resp KeyDetectionResponse
	err := c.Post(ctx, PathKeyDetection, req, &resp)
	return resp, err
}

type RenderRequest struct {
	Width    int           `json:"width"`
	Height   int           `json:"height"`
	FPS      int           `json:"fps"`
	Duration float64       `json:"duration"`
	Visual   *value.Visual `json:"visual,omitempty"`
	Audio    AudioPayload  `json:"audio"`
}

type RenderResponse struct {
	JobID    string  `json:"job_id"`
	Status   string  `json:"status"`
	URL      string  `json:"url"`
	Progress float64 `json:"progress"`
}

func (c *Client) RenderVideo(ctx context.Context, req RenderRequest) (RenderResponse, error) {
	var resp RenderResponse
	err := c.Post(ctx, PathRenderVideo, req, &resp)
	return resp, err
}
