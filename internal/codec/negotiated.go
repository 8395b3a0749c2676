package codec

import (
	"fmt"
	"strings"

	"github.com/pion/sdp/v3"
	"github.com/pion/webrtc/v4"
)

// NegotiatedCodecs lists the codecs of the first m-section of the given kind,
// in the order the remote side listed them. Entries are mime types such as
// "video/VP9".
func NegotiatedCodecs(sd webrtc.SessionDescription, kind webrtc.RTPCodecType) ([]string, error) {
	parsed, err := sd.Unmarshal()
	if err != nil {
		return nil, fmt.Errorf("parse %s sdp: %w", sd.Type, err)
	}

	for _, md := range parsed.MediaDescriptions {
		if md.MediaName.Media != kind.String() {
			continue
		}
		return codecsOf(md), nil
	}
	return nil, nil
}

// codecsOf maps the payload types of md to mime types via rtpmap.
func codecsOf(md *sdp.MediaDescription) []string {
	names := make(map[string]string)
	for _, attr := range md.Attributes {
		if attr.Key != "rtpmap" {
			continue
		}
		pt, rest, ok := strings.Cut(attr.Value, " ")
		if !ok {
			continue
		}
		name, _, _ := strings.Cut(rest, "/")
		names[pt] = md.MediaName.Media + "/" + name
	}

	out := make([]string, 0, len(md.MediaName.Formats))
	for _, pt := range md.MediaName.Formats {
		if name, ok := names[pt]; ok {
			out = append(out, name)
		}
	}
	return out
}

// Contains reports whether mimeType appears in codecs, ignoring case.
func Contains(codecs []string, mimeType string) bool {
	for _, c := range codecs {
		if strings.EqualFold(c, mimeType) {
			return true
		}
	}
	return false
}
