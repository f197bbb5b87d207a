package types

// ChannelEvent is the name of a message on the transport channel
type ChannelEvent string

func (e ChannelEvent) String() string {
	return string(e)
}

const (
	EventSession          ChannelEvent = "session"
	EventSendLocation     ChannelEvent = "send-location"
	EventReceiveLocation  ChannelEvent = "receive-location"
	EventUserDisconnected ChannelEvent = "user-disconnected"
	EventError            ChannelEvent = "error"
)
