package service

import (
	"fmt"

	"github.com/okian/shotlab/internal/domain/pose"
	"github.com/okian/shotlab/internal/domain/profile"
	"github.com/okian/shotlab/internal/domain/vision"
	"github.com/okian/shotlab/internal/imagedata"
)

// AnalysisJob is the JSON form of one analysis, shared by the POST
// /v1/analyses body and the analyze job file. Image is base64 or a data URL.
type AnalysisJob struct {
	ImageID            string               `json:"image_id"`
	Image              string               `json:"image"`
	MIME               string               `json:"mime"`
	Keypoints          []pose.Keypoint      `json:"keypoints"`
	Profile            *profile.UserProfile `json:"profile"`
	ProviderPreference string               `json:"provider_preference"`
}

// Request decodes the inline image and normalizes the preference.
func (j AnalysisJob) Request() (AnalysisRequest, error) {
	out := AnalysisRequest{
		ImageID:   j.ImageID,
		Keypoints: j.Keypoints,
		Profile:   j.Profile,
	}
	if j.Image != "" {
		data, hint, err := imagedata.Decode(j.Image)
		if err != nil {
			return AnalysisRequest{}, err
		}
		out.Image = data
		out.MIME = imagedata.PickMIME(j.MIME, hint, data)
	}
	if j.ProviderPreference != "" {
		pref, err := vision.ParsePreference(j.ProviderPreference)
		if err != nil {
			return AnalysisRequest{}, fmt.Errorf("%w: %q", err, j.ProviderPreference)
		}
		out.Preference = pref
	}
	return out, nil
}

// WithImage replaces the request image with raw bytes read elsewhere. The
// job's declared MIME still wins over sniffing; id names the image when the
// job did not.
func (j AnalysisJob) WithImage(req AnalysisRequest, data []byte, id string) AnalysisRequest {
	req.Image = data
	req.MIME = imagedata.PickMIME(j.MIME, "", data)
	if req.ImageID == "" {
		req.ImageID = id
	}
	return req
}
