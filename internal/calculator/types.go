package calculator

import (
	"encoding/json"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Operation is one of the four arithmetic operations the backend exposes.
type Operation string

const (
	OpSum Operation = "sum"
	OpSub Operation = "sub"
	OpMul Operation = "mul"
	OpDiv Operation = "div"
)

// Minimum operand counts per request kind.
const (
	SimpleMinOperands = 2
	BatchMinOperands  = 1
)

// Operations lists every supported operation in display order.
var Operations = []Operation{OpSum, OpSub, OpMul, OpDiv}

var operationAliases = map[string]Operation{
	"sum":            OpSum,
	"suma":           OpSum,
	"+":              OpSum,
	"sub":            OpSub,
	"res":            OpSub,
	"resta":          OpSub,
	"-":              OpSub,
	"mul":            OpMul,
	"multiplicacion": OpMul,
	"*":              OpMul,
	"x":              OpMul,
	"div":            OpDiv,
	"division":       OpDiv,
	"/":              OpDiv,
}

// ParseOperation resolves a user- or backend-supplied operation name.
func ParseOperation(raw string) (Operation, error) {
	op, ok := operationAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", ValidationError("unknown operation %q", raw)
	}
	return op, nil
}

// Path is the backend path segment, e.g. /calculadora/res.
func (o Operation) Path() string {
	switch o {
	case OpSub:
		return "res"
	default:
		return string(o)
	}
}

// HistoryName is the name under which the backend stores the operation.
func (o Operation) HistoryName() string {
	switch o {
	case OpSum:
		return "suma"
	case OpSub:
		return "resta"
	case OpMul:
		return "multiplicacion"
	case OpDiv:
		return "division"
	default:
		return string(o)
	}
}

func (o Operation) Symbol() string {
	switch o {
	case OpSum:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "×"
	case OpDiv:
		return "÷"
	default:
		return "?"
	}
}

// BatchEntry is one operation queued for a batch submit.
type BatchEntry struct {
	Operation Operation `json:"op" validate:"required,oneof=sum sub mul div"`
	Operands  []float64 `json:"nums" validate:"min=1"`
}

// BatchResult is a single per-entry result from a successful batch submit.
type BatchResult struct {
	Operation string  `json:"op"`
	Result    float64 `json:"result"`
}

// BatchOutcome holds the backend response to a successful batch submit.
// Raw is always set; Results only when the body matched the known shape.
type BatchOutcome struct {
	Raw     json.RawMessage `json:"raw"`
	Results []BatchResult   `json:"results,omitempty"`
}

// Computation is the outcome of a simple operation.
type Computation struct {
	Operation Operation `json:"operation"`
	Operands  []float64 `json:"operands"`
	Result    float64   `json:"result"`
}

// Record is a normalized history record as reported by the backend.
type Record struct {
	ID        string    `json:"id,omitempty"`
	Operation string    `json:"operation,omitempty"`
	Operands  []float64 `json:"operands"`
	Result    float64   `json:"result"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// Expression renders the record the way the history list shows it,
// e.g. "10 + 5 = 15".
func (r Record) Expression() string {
	symbol := "?"
	if op, err := ParseOperation(r.Operation); err == nil {
		symbol = op.Symbol()
	}

	parts := make([]string, len(r.Operands))
	for i, n := range r.Operands {
		parts[i] = FormatNumber(n)
	}

	return strings.Join(parts, " "+symbol+" ") + " = " + FormatNumber(r.Result)
}

// FormatNumber prints n with the shortest exact representation.
func FormatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// HistoryOrder is the display-order transform applied to fetched history.
type HistoryOrder string

const (
	// OrderServer keeps the backend's order.
	OrderServer HistoryOrder = "server"
	// OrderReverse reverses the backend's order.
	OrderReverse HistoryOrder = "reverse"
	// OrderNewest sorts by timestamp, newest first.
	OrderNewest HistoryOrder = "newest"
)

// HistoryOrders lists every supported order.
var HistoryOrders = []HistoryOrder{OrderServer, OrderReverse, OrderNewest}

func (o HistoryOrder) Valid() bool {
	return slices.Contains(HistoryOrders, o)
}

// Apply returns a reordered copy of records.
func (o HistoryOrder) Apply(records []Record) []Record {
	out := slices.Clone(records)

	switch o {
	case OrderReverse:
		slices.Reverse(out)
	case OrderNewest:
		slices.SortStableFunc(out, func(a, b Record) int {
			return b.Timestamp.Compare(a.Timestamp)
		})
	}

	return out
}

// HistoryQueryKind selects the backend history endpoint.
type HistoryQueryKind string

const (
	HistoryAll         HistoryQueryKind = "all"
	HistoryByOperation HistoryQueryKind = "operation"
	HistoryByDate      HistoryQueryKind = "date"
)

// HistoryQuery describes a history fetch. Operation and Date are mutually
// exclusive; Limit zero leaves the count to the backend.
type HistoryQuery struct {
	Operation Operation `json:"operation,omitempty" validate:"omitempty,oneof=sum sub mul div,excluded_with=Date"`
	Date      string    `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Limit     int       `json:"limit,omitempty" validate:"gte=0"`
}

func (q HistoryQuery) Kind() HistoryQueryKind {
	switch {
	case q.Operation != "":
		return HistoryByOperation
	case q.Date != "":
		return HistoryByDate
	default:
		return HistoryAll
	}
}
