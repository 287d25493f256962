package plugin

import "strconv"

// Number is a polled value. It keeps the integer or floating-point nature of
// the source field instead of flattening everything to float64, so counters
// larger than 2^53 survive intact.
type Number struct {
	isFloat bool
	i       int64
	f       float64
}

// Int returns a Number holding an integer value.
func Int(v int64) Number { return Number{i: v} }

// Float returns a Number holding a floating-point value.
func Float(v float64) Number { return Number{isFloat: true, f: v} }

// Float64 returns the value widened to float64.
func (n Number) Float64() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func (n Number) String() string {
	if n.isFloat {
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	}
	return strconv.FormatInt(n.i, 10)
}

// coerceNumber converts a raw result field into a Number. The transport hands
// back int64, float64 or string depending on how the field parsed; decimal
// strings are accepted as well since TR-064 arguments are text on the wire.
func coerceNumber(v any) (Number, bool) {
	switch v := v.(type) {
	case int:
		return Int(int64(v)), true
	case int64:
		return Int(v), true
	case uint64:
		return Int(int64(v)), true
	case float64:
		return Float(v), true
	case string:
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return Int(i), true
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return Float(f), true
		}
	}
	return Number{}, false
}

// Field maps one argument of a query response onto a metric type and type
// instance. Convert, when set, replaces the numeric pass-through; it is used
// for status words that report a state rather than a quantity.
type Field struct {
	Source       string
	Type         string
	TypeInstance string
	Convert      func(any) (Number, bool)
}

// Query is one TR-064 action to poll together with the fields extracted from
// its response.
type Query struct {
	Service string
	Action  string
	Fields  []Field
}

// statusWord maps a state string onto a 0/1 gauge.
func statusWord(up string) func(any) (Number, bool) {
	return func(v any) (Number, bool) {
		s, ok := v.(string)
		if !ok {
			return Number{}, false
		}
		if s == up {
			return Int(1), true
		}
		return Int(0), true
	}
}

// catalog is the fixed set of queries polled every cycle. Order matters:
// records are dispatched in catalog order, then field declaration order.
// The catalog is never derived from configuration.
var catalog = []Query{
	{
		Service: "WANIPConnection",
		Action:  "GetStatusInfo",
		Fields: []Field{
			{Source: "NewUptime", Type: "uptime"},
			{Source: "NewConnectionStatus", Type: "gauge", TypeInstance: "connection_status", Convert: statusWord("Connected")},
		},
	},
	{
		Service: "WANCommonInterfaceConfig",
		Action:  "GetCommonLinkProperties",
		Fields: []Field{
			{Source: "NewLayer1DownstreamMaxBitRate", Type: "bitrate", TypeInstance: "downstream_max"},
			{Source: "NewLayer1UpstreamMaxBitRate", Type: "bitrate", TypeInstance: "upstream_max"},
			{Source: "NewPhysicalLinkStatus", Type: "gauge", TypeInstance: "link_status", Convert: statusWord("Up")},
		},
	},
	{
		Service: "WANCommonInterfaceConfig",
		Action:  "GetAddonInfos",
		Fields: []Field{
			{Source: "NewByteSendRate", Type: "if_octets", TypeInstance: "tx"},
			{Source: "NewByteReceiveRate", Type: "if_octets", TypeInstance: "rx"},
			{Source: "NewTotalBytesSent", Type: "bytes", TypeInstance: "tx_total"},
			{Source: "NewTotalBytesReceived", Type: "bytes", TypeInstance: "rx_total"},
		},
	},
	{
		Service: "LANEthernetInterfaceConfig",
		Action:  "GetStatistics",
		Fields: []Field{
			{Source: "NewBytesSent", Type: "bytes", TypeInstance: "lan_tx_total"},
			{Source: "NewBytesReceived", Type: "bytes", TypeInstance: "lan_rx_total"},
		},
	},
}
