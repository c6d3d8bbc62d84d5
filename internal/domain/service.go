package domain

import "context"

// DeliveryResult is the outcome of one bot send.
type DeliveryResult struct {
	SubscriberID int64 `json:"subscriber_id"`
	Delivered    bool  `json:"delivered"`
	// Permanent marks failures that will not succeed on a later attempt
	// (the subscriber blocked the bot or the chat no longer exists).
	Permanent bool   `json:"permanent,omitempty"`
	Error     string `json:"error,omitempty"`
}

// BotChannel delivers rendered text to a single subscriber.
type BotChannel interface {
	Send(ctx context.Context, subscriberID int64, text string) DeliveryResult
}

// DeliveryReport tallies a fan-out. Failures never abort the loop and are
// always distinguishable from successes.
type DeliveryReport struct {
	Audience  string           `json:"audience"`
	Targeted  int              `json:"targeted"`
	Delivered int              `json:"delivered"`
	Failed    int              `json:"failed"`
	Failures  []DeliveryResult `json:"failures,omitempty"`
}

// Metrics records business counters. Implementations must be safe for
// concurrent use.
type Metrics interface {
	RecordDelivery(audience string, delivered bool)
	RecordSignalCreated(kind SignalKind, source string)
	RecordCandidateRejected(reason ErrorKind)
	RecordProviderCall(provider string, seconds float64, err error)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordDelivery(string, bool) {}
func (NopMetrics) RecordSignalCreated(SignalKind, string) {}
func (NopMetrics) RecordCandidateRejected(ErrorKind) {}
func (NopMetrics) RecordProviderCall(string, float64, error) {}
