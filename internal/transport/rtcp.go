package transport

import (
	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v4"

	"github.com/1ureka/callr/internal/util"
)

// drainRTCP reads the sender's RTCP so the interceptors keep running, and
// logs the loss the remote peer reports for our audio.
func drainRTCP(sender *webrtc.RTPSender) {
	for {
		pkts, _, err := sender.ReadRTCP()
		if err != nil {
			return
		}
		if lost, ok := worstFractionLost(pkts); ok && lost > 0 {
			util.LogDebug("remote reports %.1f%% audio loss", float64(lost)*100/256)
		}
	}
}

// worstFractionLost returns the highest fraction-lost value (in 1/256ths)
// across all receiver reports in pkts. ok is false when pkts carries none.
func worstFractionLost(pkts []rtcp.Packet) (worst uint8, ok bool) {
	for _, p := range pkts {
		var reports []rtcp.ReceptionReport
		switch rr := p.(type) {
		case *rtcp.ReceiverReport:
			reports = rr.Reports
		case *rtcp.SenderReport:
			reports = rr.Reports
		default:
			continue
		}
		for _, r := range reports {
			ok = true
			if r.FractionLost > worst {
				worst = r.FractionLost
			}
		}
	}
	return worst, ok
}
