package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide signaling/media counter.
var Stats = &stats{}

type stats struct {
	SignalSent        atomic.Int64 // signaling frames written
	SignalRecv        atomic.Int64 // signaling frames read
	CandidatesQueued  atomic.Int64 // remote candidates held until a remote description existed
	CandidatesApplied atomic.Int64 // remote candidates handed to the engine
	MediaBytesRecv    atomic.Int64 // RTP payload bytes read from remote tracks
	PacketsLost       atomic.Int64 // gaps in remote RTP sequence numbers
	DataMessagesRecv  atomic.Int64 // data channel messages received
}

func (s *stats) AddSignalSent()       { s.SignalSent.Add(1) }
func (s *stats) AddSignalRecv()       { s.SignalRecv.Add(1) }
func (s *stats) AddCandidateQueued()  { s.CandidatesQueued.Add(1) }
func (s *stats) AddCandidateApplied() { s.CandidatesApplied.Add(1) }
func (s *stats) AddMediaRecv(n int)   { s.MediaBytesRecv.Add(int64(n)) }
func (s *stats) AddPacketsLost(n int) { s.PacketsLost.Add(int64(n)) }
func (s *stats) AddDataMessageRecv()  { s.DataMessagesRecv.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs session statistics
// every interval. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		var prevMedia, prevData, prevLost int64
		for {
			select {
			case <-ticker.C:
				media := Stats.MediaBytesRecv.Load()
				data := Stats.DataMessagesRecv.Load()
				lost := Stats.PacketsLost.Load()

				rate := float64(media-prevMedia) / interval.Seconds()
				msgs := data - prevData

				if rate > 10 || msgs > 0 {
					pterm.DefaultLogger.Info(formatStats(rate, msgs, lost-prevLost,
						Stats.SignalSent.Load(), Stats.SignalRecv.Load()))
				}

				prevMedia = media
				prevData = data
				prevLost = lost

			case <-ctx.Done():
				return
			}
		}
	}()
}

// byteUnits defines the units for formatting byte counts in a human-readable way.
var byteUnits = []string{"B", "KiB", "MiB", "GiB", "TiB", "PiB"}

// formatBytes formats a byte count into a human-readable string with fixed width (exactly 8 chars)
// for example: "99.0   B", " 1.5 KiB", " 0.1 MiB", "98.9 GiB", etc.
func formatBytes(b float64) string {
	unitIdx := 0

	// to prevent "100.0 KiB", which is 9 chars
	for b > 99 && unitIdx < 5 {
		b /= 1024
		unitIdx++
	}

	return fmt.Sprintf("%4.1f %3s", b, byteUnits[unitIdx])
}

// formatStats returns a formatted string of the current stats for display in the logger.
func formatStats(mediaRate float64, dataMsgs, lost, sent, recv int64) string {
	return fmt.Sprintf("Media: %s/s (%d lost) | Data: %3d msg | Signal: %d↑ %d↓",
		formatBytes(mediaRate),
		lost,
		dataMsgs,
		sent,
		recv,
	)
}
