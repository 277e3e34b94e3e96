package relay

import (
	"github.com/gin-gonic/gin"
	webrtc "github.com/pion/webrtc/v3"

	"github.com/lumen-support/backend/pkg/response"
)

// ICEConfigHandler returns GET /webrtc/config: the STUN/TURN servers both
// peers feed into their PeerConnection once signaling completes. The relay
// never touches media; this is the only WebRTC-aware surface it has.
func ICEConfigHandler(servers []webrtc.ICEServer) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.OK(c, gin.H{"ice_servers": servers})
	}
}
