package calcapi

import (
	"encoding/json"
	"strings"
	"time"

	"calculadora-console/internal/calculator"
)

// wireRecord accepts both history shapes: the two-operand {a, b, resultado,
// date} documents and the later {operacion, numeros, resultado, fecha} ones.
type wireRecord struct {
	ID        json.RawMessage `json:"_id"`
	A         *float64        `json:"a"`
	B         *float64        `json:"b"`
	Numeros   []float64       `json:"numeros"`
	Nums      []float64       `json:"nums"`
	Operacion string          `json:"operacion"`
	Op        string          `json:"op"`
	Resultado *float64        `json:"resultado"`
	Result    *float64        `json:"result"`
	Date      json.RawMessage `json:"date"`
	Fecha     json.RawMessage `json:"fecha"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func (w wireRecord) record() calculator.Record {
	r := calculator.Record{
		ID:        rawID(w.ID),
		Operation: firstNonEmpty(w.Operacion, w.Op),
	}

	switch {
	case len(w.Numeros) > 0:
		r.Operands = w.Numeros
	case len(w.Nums) > 0:
		r.Operands = w.Nums
	default:
		for _, v := range []*float64{w.A, w.B} {
			if v != nil {
				r.Operands = append(r.Operands, *v)
			}
		}
		// The two-operand endpoint only ever summed.
		if r.Operation == "" && len(r.Operands) > 0 {
			r.Operation = calculator.OpSum.HistoryName()
		}
	}

	switch {
	case w.Resultado != nil:
		r.Result = *w.Resultado
	case w.Result != nil:
		r.Result = *w.Result
	}

	r.Timestamp = parseTimestamp(w.Date)
	if r.Timestamp.IsZero() {
		r.Timestamp = parseTimestamp(w.Fecha)
	}

	return r
}

// parseTimestamp accepts an ISO string or Mongo extended JSON {"$date": ...}.
func parseTimestamp(raw json.RawMessage) time.Time {
	if len(raw) == 0 {
		return time.Time{}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		var ext struct {
			Date string `json:"$date"`
		}
		if err := json.Unmarshal(raw, &ext); err != nil {
			return time.Time{}
		}
		s = ext.Date
	}

	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}

	return time.Time{}
}

// rawID accepts a plain string id or Mongo extended JSON {"$oid": "..."}.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var oid struct {
		OID string `json:"$oid"`
	}
	if err := json.Unmarshal(raw, &oid); err == nil {
		return oid.OID
	}

	return strings.Trim(string(raw), `"`)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
