package statushandler

import "github.com/pion/webrtc/v4"

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}

type ICEResponse struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
