package message

// Status is the delivery lifecycle of a message. It only moves forward:
// sent -> delivered -> read.
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
)

var statusRank = map[Status]int{
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// ParseStatus validates a wire value.
func ParseStatus(value string) (Status, bool) {
	s := Status(value)
	_, ok := statusRank[s]
	return s, ok
}

func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Advances reports whether moving from s to next is a forward transition.
func (s Status) Advances(next Status) bool {
	return statusRank[next] > statusRank[s]
}

// Predecessors lists the statuses a record may hold for next to apply.
func (s Status) Predecessors() []Status {
	var out []Status
	for _, candidate := range []Status{StatusSent, StatusDelivered, StatusRead} {
		if statusRank[candidate] < statusRank[s] {
			out = append(out, candidate)
		}
	}
	return out
}

// DeliveryState tracks a message through the fan-out engine.
type DeliveryState string

const (
	StateComposed          DeliveryState = "composed"
	StateStored            DeliveryState = "stored"
	StateAttemptedDelivery DeliveryState = "attempted_delivery"
	StateDelivered         DeliveryState = "delivered"
	StateQueuedOffline     DeliveryState = "queued_offline"
)
