package schema

// Price is a scaled integer. The scale is defined per instrument.
type Price int64

// Quantity is a scaled integer. The scale is defined per instrument.
type Quantity int64

// Notional is a scaled integer. The scale is defined per instrument.
type Notional int64

// Cash is a scaled integer amount of account currency.
type Cash int64

// MarketKind describes the meaning of a market event payload.
type MarketKind uint16

const (
	MarketUnknown MarketKind = iota
	MarketTrade
	MarketQuote
	MarketBook
)

// MarketEvent is the payload for EventMarket. Trade carries Price/Size,
// Quote and Book carry the bid/ask fields. VenueSeq is the upstream
// per-instrument sequence number when the venue provides one.
type MarketEvent struct {
	SymbolID uint32
	Kind     MarketKind
	Flags    uint16
	VenueSeq uint64
	TsEvent  int64
	Price    Price
	Size     Quantity
	BidPrice Price
	BidSize  Quantity
	AskPrice Price
	AskSize  Quantity
}

// OrderSide describes order direction.
type OrderSide uint16

const (
	OrderSideUnknown OrderSide = iota
	OrderSideBuy
	OrderSideSell
)

// OrderType describes order type.
type OrderType uint16

const (
	OrderTypeUnknown OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
)

// TimeInForce describes order time-in-force.
type TimeInForce uint16

const (
	TimeInForceUnknown TimeInForce = iota
	TimeInForceGTC
	TimeInForceIOC
	TimeInForceFOK
)

// OrderIntent is a proposed order produced by a strategy. TsEvent is the
// timestamp of the market event that triggered the intent.
type OrderIntent struct {
	OrderID     uint64
	StrategyID  uint32
	SymbolID    uint32
	Side        OrderSide
	Type        OrderType
	TimeInForce TimeInForce
	Flags       uint16
	Price       Price
	Qty         Quantity
	TsEvent     int64
}

// OrderAckStatus describes the outcome reported by the venue.
type OrderAckStatus uint16

const (
	OrderAckStatusUnknown OrderAckStatus = iota
	OrderAckStatusAcked
	OrderAckStatusRejected
	OrderAckStatusCanceled
	OrderAckStatusPartFilled
	OrderAckStatusFilled
)

// OrderAckReason describes why the venue acknowledged that way.
type OrderAckReason uint16

const (
	OrderAckReasonNone OrderAckReason = iota
	OrderAckReasonVenueReject
	OrderAckReasonRiskReject
	OrderAckReasonInvalidPrice
	OrderAckReasonInvalidQty
)

// OrderAck is the payload for EventOrderAck.
type OrderAck struct {
	OrderID      uint64
	SymbolID     uint32
	Status       OrderAckStatus
	Reason       OrderAckReason
	Flags        uint16
	Reserved     uint16
	Price        Price
	Qty          Quantity
	LeavesQty    Quantity
	VenueOrderID uint64
}

// RiskAction is the outcome of a risk decision.
type RiskAction uint16

const (
	RiskActionUnknown RiskAction = iota
	RiskActionAllow
	RiskActionDeny
)

// RiskReason is a coarse reason code for risk decisions.
type RiskReason uint16

const (
	RiskReasonNone RiskReason = iota
	RiskReasonExposureExceeded
	RiskReasonNotionalExceeded
	RiskReasonRateLimited
	RiskReasonInstrumentHalted
	RiskReasonKillSwitch
)

// RiskDecision is the payload for EventRiskDecision.
type RiskDecision struct {
	OrderID       uint64
	StrategyID    uint32
	SymbolID      uint32
	Action        RiskAction
	Reason        RiskReason
	Flags         uint16
	Reserved      uint16
	ProposedQty   Quantity
	ProposedPrice Price
	CurrentPos    Quantity
	MaxNotional   Notional
	MaxExposure   Notional
}

// Fill is the payload for EventFill. FillSeq is assigned by the venue
// per order and makes fill application idempotent under retransmission.
type Fill struct {
	OrderID  uint64
	SymbolID uint32
	FillSeq  uint32
	Side     OrderSide
	Flags    uint16
	Price    Price
	Qty      Quantity
	TsEvent  int64
}

// FeedState describes feed connectivity in an EventFeedStatus payload.
type FeedState uint16

const (
	FeedStateUnknown FeedState = iota
	FeedStateConnected
	FeedStateDisconnected
)

// GatewayState describes gateway connectivity in an EventGatewayStatus payload.
type GatewayState uint16

const (
	GatewayStateUnknown GatewayState = iota
	GatewayStateConnected
	GatewayStateDisconnected
	GatewayStateReconciled
)
