package schema

// SchemaVersion is the current event schema version.
const SchemaVersion uint16 = 1

// EventType defines the category of an event flowing through the session.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventMarket
	EventOrderIntent
	EventOrderAck
	EventFill
	EventRiskDecision
	EventFeedStatus
	EventGatewayStatus
)

func (t EventType) String() string {
	switch t {
	case EventMarket:
		return "market"
	case EventOrderIntent:
		return "order-intent"
	case EventOrderAck:
		return "order-ack"
	case EventFill:
		return "fill"
	case EventRiskDecision:
		return "risk-decision"
	case EventFeedStatus:
		return "feed-status"
	case EventGatewayStatus:
		return "gateway-status"
	default:
		return "unknown"
	}
}

// EventSource identifies which loop produced an event.
type EventSource uint16

const (
	SourceUnknown EventSource = iota
	SourceFeed
	SourceGateway
	SourceSupervisor
)

// EventHeader is the common metadata attached to every event.
type EventHeader struct {
	Type    EventType
	Version uint16
	Source  EventSource
	Flags   uint16
	Seq     uint64
	TsEvent int64
	TsRecv  int64
	TraceID uint64
}

// NewHeader builds a header with the current schema version.
func NewHeader(eventType EventType, source EventSource, seq uint64, tsEvent, tsRecv int64) EventHeader {
	return EventHeader{
		Type:    eventType,
		Version: SchemaVersion,
		Source:  source,
		Seq:     seq,
		TsEvent: tsEvent,
		TsRecv:  tsRecv,
	}
}
