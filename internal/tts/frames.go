package tts

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// DefaultVoice is the xfyun voice (vcn) used when none is configured.
	DefaultVoice = "x4_lingxiaojie"
	// DefaultLevel is the neutral midpoint for speed, volume and pitch (0..100).
	DefaultLevel = 50

	// statusComplete marks the outbound text as the whole input, and an
	// inbound frame as the last one of the response.
	statusComplete = 2
)

// Business holds the xfyun synthesis parameters.
type Business struct {
	Aue    string `json:"aue"` // audio encoding, "lame" = mp3
	Sfl    int    `json:"sfl"` // 1 = stream mp3 frames
	Auf    string `json:"auf"`
	Vcn    string `json:"vcn"`
	Speed  int    `json:"speed"`
	Volume int    `json:"volume"`
	Pitch  int    `json:"pitch"`
	Bgs    int    `json:"bgs"`
	Tte    string `json:"tte"`
	Reg    string `json:"reg"`
	Ram    string `json:"ram"`
	Rdn    string `json:"rdn"`
}

// DefaultBusiness returns mp3 output, 16kHz 16-bit input format, UTF-8 text
// and neutral speed, volume and pitch.
func DefaultBusiness() Business {
	return Business{
		Aue:    "lame",
		Sfl:    1,
		Auf:    "audio/L16;rate=16000",
		Vcn:    DefaultVoice,
		Speed:  DefaultLevel,
		Volume: DefaultLevel,
		Pitch:  DefaultLevel,
		Bgs:    0,
		Tte:    "UTF8",
		Reg:    "0",
		Ram:    "0",
		Rdn:    "0",
	}
}

// synthesisRequest is the single frame sent after the connection opens.
type synthesisRequest struct {
	Common struct {
		AppID string `json:"app_id"`
	} `json:"common"`
	Business Business `json:"business"`
	Data     struct {
		Status int    `json:"status"`
		Text   string `json:"text"`
	} `json:"data"`
}

func buildRequest(appID string, business Business, text string) ([]byte, error) {
	var req synthesisRequest
	req.Common.AppID = appID
	req.Business = business
	req.Data.Status = statusComplete
	req.Data.Text = base64.StdEncoding.EncodeToString([]byte(text))

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return body, nil
}

// synthesisResponse is one inbound xfyun message.
type synthesisResponse struct {
	Code    *int   `json:"code"`
	Message string `json:"message"`
	SID     string `json:"sid"`
	Data    *struct {
		Audio  string `json:"audio"`
		Status int    `json:"status"`
		Ced    string `json:"ced"`
	} `json:"data"`
}

type frameKind int

const (
	frameAudio frameKind = iota
	frameFinal
	frameVendorError
)

// frame is a validated inbound message.
type frame struct {
	kind  frameKind
	audio []byte // may be set on frameAudio and frameFinal
	err   *VendorError
}

var errMalformedFrame = errors.New("malformed xfyun response")

// decodeFrame validates raw and classifies it. Anything that does not match
// the response envelope is rejected rather than guessed at.
func decodeFrame(raw []byte) (frame, error) {
	var resp synthesisResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return frame{}, fmt.Errorf("%w: %v", errMalformedFrame, err)
	}
	if resp.Code == nil {
		return frame{}, fmt.Errorf("%w: missing code", errMalformedFrame)
	}
	if *resp.Code != 0 {
		return frame{kind: frameVendorError, err: &VendorError{
			Code:    *resp.Code,
			Message: resp.Message,
			SID:     resp.SID,
		}}, nil
	}

	f := frame{kind: frameAudio}
	if resp.Data == nil {
		return f, nil
	}
	if resp.Data.Audio != "" {
		audio, err := base64.StdEncoding.DecodeString(resp.Data.Audio)
		if err != nil {
			return frame{}, fmt.Errorf("%w: audio: %v", errMalformedFrame, err)
		}
		f.audio = audio
	}
	if resp.Data.Status == statusComplete {
		f.kind = frameFinal
	}
	return f, nil
}
