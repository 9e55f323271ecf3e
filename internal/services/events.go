package services

// EventPublisher is the slice of the events package the services need.
// Publishing is fire and forget.
type EventPublisher interface {
	Publish(subject string, payload interface{})
}
