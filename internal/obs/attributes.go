package obs

import "go.opentelemetry.io/otel/attribute"

var (
	// AttrProvider is the upstream wire dialect ("gemini", "openai", "anthropic").
	AttrProvider = attribute.Key("bridge.provider")

	// AttrEventType is the Responses event type string.
	AttrEventType = attribute.Key("bridge.event.type")

	// AttrStatus is how a stream ended: completed, incomplete, failed, canceled or error.
	AttrStatus = attribute.Key("bridge.stream.status")
)
