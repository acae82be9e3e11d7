package interfaces

import "time"

// Topic names an EventBus stream.
type Topic string

const (
	TopicInfo    Topic = "info"
	TopicError   Topic = "error"
	TopicSuccess Topic = "success"

	// TopicReconstruction carries unlock progress percentages.
	TopicReconstruction Topic = "reconstruction"
	// TopicBackup carries restore-from-backup progress percentages.
	TopicBackup Topic = "backup"
	// TopicAutolock carries remaining seconds until auto-lock.
	TopicAutolock Topic = "autolock"
)

// AllTopics lists every topic the bus serves.
var AllTopics = []Topic{TopicInfo, TopicError, TopicSuccess, TopicReconstruction, TopicBackup, TopicAutolock}

// Event is a single message delivered on a topic.
type Event struct {
	Topic   Topic     `json:"topic"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Publisher is the producer side of the EventBus.
type Publisher interface {
	Publish(topic Topic, message string)
	// Progress publishes a percentage on a progress topic.
	Progress(topic Topic, percent int)
}
