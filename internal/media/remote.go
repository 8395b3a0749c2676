package media

import (
	"errors"
	"io"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/callr/internal/util"
)

// TrackSink consumes a remote track until it ends. Rendering lives outside
// this module; the sink only has to keep reading so the engine's buffers do
// not fill up.
type TrackSink func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)

// Drain is the default TrackSink: it reads RTP, counts payload bytes and
// sequence gaps.
func Drain(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	util.LogInfo("remote %s track: %s (ssrc %d)", track.Kind(), track.Codec().MimeType, track.SSRC())

	var seq seqTracker
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				util.LogDebug("remote track %s stopped: %v", track.ID(), err)
			}
			return
		}
		util.Stats.AddMediaRecv(len(pkt.Payload))
		if lost := seq.observe(pkt); lost > 0 {
			util.Stats.AddPacketsLost(lost)
		}
	}
}

// seqTracker counts missing sequence numbers. Reordered or duplicate
// packets are not counted.
type seqTracker struct {
	started bool
	last    uint16
}

// observe returns how many packets went missing before pkt.
func (s *seqTracker) observe(pkt *rtp.Packet) int {
	if !s.started {
		s.started = true
		s.last = pkt.SequenceNumber
		return 0
	}
	diff := pkt.SequenceNumber - s.last
	if diff == 0 || diff >= 1<<15 {
		return 0
	}
	s.last = pkt.SequenceNumber
	return int(diff) - 1
}

func logProduceError(trackID string, err error) {
	util.LogWarning("local track %s stopped: %v", trackID, err)
}
