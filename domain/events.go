package domain

type Kind string

// Inbound kinds, emitted by peers.
const (
	KindRequestScreenShare    Kind = "requestScreenShare"
	KindAcceptScreenShare     Kind = "acceptScreenShare"
	KindDeclineScreenShare    Kind = "declineScreenShare"
	KindScreenData            Kind = "screenData"
	KindLocationUpdate        Kind = "locationUpdate"
	KindTextAndLocationUpdate Kind = "textAndLocationUpdate"
	KindPing                  Kind = "ping"
)

// Outbound kinds, emitted by the relay. locationUpdate and textAndLocationUpdate
// keep their inbound names.
const (
	KindScreenShareRequest  Kind = "screenShareRequest"
	KindScreenShareAccepted Kind = "screenShareAccepted"
	KindScreenShareDeclined Kind = "screenShareDeclined"
	KindScreenUpdate        Kind = "screenUpdate"
	KindConnected           Kind = "connected"
	KindPong                Kind = "pong"
)

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ScreenData stands in for captured screen content: a timestamp and where it was taken.
type ScreenData struct {
	Timestamp string   `json:"timestamp"`
	Location  Location `json:"location"`
}

type TextAndLocation struct {
	Text      string  `json:"text"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
