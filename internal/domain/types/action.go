package types

const (
	ActionRabbitMQConnected       = "rabbitmq_connected"
	ActionRabbitConnectionClosed  = "rabbitmq_connection_closed"
	ActionRabbitConnectionClosing = "rabbitmq_connection_closing"
	ActionRabbitReconnected       = "rabbitmq_reconnection_success"

	ActionParticipantJoined = "participant_joined"
	ActionParticipantLeft   = "participant_left"
	ActionRelayLocation     = "relay_location"
	ActionFanOut            = "fan_out"

	ActionApplyUpdate       = "apply_update"
	ActionRemoveParticipant = "remove_participant"
	ActionPublishLocation   = "publish_location"
	ActionLocationError     = "location_error"
	ActionSelectDestination = "select_destination"
	ActionRouteRecompute    = "route_recompute"
	ActionRender            = "render"

	ActionExternalServiceFailed = "external_service_failed"
)
