package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// RecordID accepts either a JSON number or a JSON string.
type RecordID string

func (id *RecordID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = RecordID(s)
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("record id must be a string or number: %w", err)
	}
	*id = RecordID(n.String())
	return nil
}

// UploadRecord is one processed upload as returned by the history endpoint.
// Records are never modified after decoding.
type UploadRecord struct {
	ID         RecordID `json:"id"`
	Filename   string   `json:"filename"`
	UploadedAt string   `json:"uploaded_at"`
	Summary    Summary  `json:"summary"`
}

// Summary holds the per-upload analytics computed by the backend. Any metric
// may be absent.
type Summary struct {
	TotalEquipment   Metric       `json:"total_equipment"`
	AvgFlowrate      Metric       `json:"avg_flowrate"`
	AvgPressure      Metric       `json:"avg_pressure"`
	AvgTemperature   Metric       `json:"avg_temperature"`
	TypeDistribution Distribution `json:"type_distribution"`
}

// Metric is a summary value exactly as the backend sent it: absent/null,
// a number, or anything else.
type Metric struct {
	value interface{}
}

// Number builds a numeric metric.
func Number(f float64) Metric { return Metric{value: f} }

// RawMetric builds a metric holding an arbitrary value; nil means absent.
func RawMetric(v interface{}) Metric { return Metric{value: v} }

func (m *Metric) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	m.value = v
	return nil
}

func (m Metric) MarshalJSON() ([]byte, error) {
	if f, ok := m.value.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return []byte("null"), nil
	}
	return json.Marshal(m.value)
}

// Value returns the raw value, nil when absent.
func (m Metric) Value() interface{} { return m.value }

// Present reports whether the backend supplied a non-null value.
func (m Metric) Present() bool { return m.value != nil }

// Float returns the metric as a number when it is one.
func (m Metric) Float() (float64, bool) {
	f, ok := m.value.(float64)
	return f, ok
}

// Category is one label/count pair of a distribution.
type Category struct {
	Label string  `json:"label"`
	Count float64 `json:"count"`
}

// Distribution maps category labels to counts and keeps the order in which
// labels first appeared in the JSON object.
type Distribution struct {
	entries []Category
}

// NewDistribution builds a distribution; a repeated label keeps its first
// position and takes the last count.
func NewDistribution(categories ...Category) Distribution {
	var d Distribution
	for _, c := range categories {
		d.set(c.Label, c.Count)
	}
	return d
}

func (d *Distribution) set(label string, count float64) {
	for i := range d.entries {
		if d.entries[i].Label == label {
			d.entries[i].Count = count
			return
		}
	}
	d.entries = append(d.entries, Category{Label: label, Count: count})
}

func (d *Distribution) UnmarshalJSON(data []byte) error {
	d.entries = nil

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("type_distribution must be an object, got %v", tok)
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		label, _ := keyTok.(string)

		var raw interface{}
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		// Non-numeric counts are dropped rather than failing the whole record.
		n, ok := raw.(json.Number)
		if !ok {
			continue
		}
		count, err := strconv.ParseFloat(n.String(), 64)
		if err != nil {
			continue
		}
		d.set(label, count)
	}

	_, err = dec.Token()
	return err
}

func (d Distribution) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range d.entries {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c.Label)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.FormatFloat(c.Count, 'f', -1, 64))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d Distribution) Len() int { return len(d.entries) }

// Entries returns a copy of the categories in insertion order.
func (d Distribution) Entries() []Category {
	out := make([]Category, len(d.entries))
	copy(out, d.entries)
	return out
}

func (d Distribution) Labels() []string {
	labels := make([]string, len(d.entries))
	for i, c := range d.entries {
		labels[i] = c.Label
	}
	return labels
}

func (d Distribution) Values() []float64 {
	values := make([]float64, len(d.entries))
	for i, c := range d.entries {
		values[i] = c.Count
	}
	return values
}

// Total sums all counts.
func (d Distribution) Total() float64 {
	var total float64
	for _, c := range d.entries {
		total += c.Count
	}
	return total
}
