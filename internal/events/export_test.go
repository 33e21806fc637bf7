package events

// NewKafkaPublisherWithWriter exposes the writer seam to tests.
var NewKafkaPublisherWithWriter = newKafkaPublisher

// MessageWriter exposes the writer interface to tests.
type MessageWriter = messageWriter
