// Package codec computes the preferred receive-codec ordering for video.
package codec

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

// DefaultVideoMimeType is the codec callr prefers to receive.
const DefaultVideoMimeType = webrtc.MimeTypeVP9

// Preferrer is implemented by transceivers that accept a codec ordering.
// Transceivers without it are left on the engine's default ordering.
type Preferrer interface {
	SetCodecPreferences(codecs []webrtc.RTPCodecParameters) error
}

// Policy keeps only the codecs matching MimeType.
type Policy struct {
	MimeType string
}

// ComputeVideoCodecPreferences filters available down to the configured
// mime type, preserving the engine's relative order among matches.
func (p Policy) ComputeVideoCodecPreferences(available []webrtc.RTPCodecParameters) []webrtc.RTPCodecParameters {
	out := make([]webrtc.RTPCodecParameters, 0, len(available))
	for _, c := range available {
		if strings.EqualFold(c.MimeType, p.MimeType) {
			out = append(out, c)
		}
	}
	return out
}

// Apply sets the computed preferences on t. It reports whether anything was
// applied; a missing extension point or an empty match list is not an error.
func (p Policy) Apply(t any, available []webrtc.RTPCodecParameters) (bool, error) {
	pref, ok := t.(Preferrer)
	if !ok {
		return false, nil
	}
	codecs := p.ComputeVideoCodecPreferences(available)
	if len(codecs) == 0 {
		return false, nil
	}
	if err := pref.SetCodecPreferences(codecs); err != nil {
		return false, err
	}
	return true, nil
}
