package main

import (
	"github.com/chessduel/client/pkg/logger"
	pion "github.com/pion/webrtc/v4"
)

// listen takes the opponent's voice. The console has no audio output,
// so the packets are counted and dropped.
func listen(log *logger.Logger) func(track *pion.TrackRemote) {
	return func(track *pion.TrackRemote) {
		log.Info().Msgf("Voice of the opponent [%s]", track.Codec().MimeType)
		buf := make([]byte, 1500)
		var packets, bytes int
		for {
			n, _, err := track.Read(buf)
			if err != nil {
				log.Info().Msgf("Voice ended after %v packets, %v bytes", packets, bytes)
				return
			}
			packets++
			bytes += n
		}
	}
}
