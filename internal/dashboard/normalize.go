package dashboard

import (
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/cheminsight/cheminsight/internal/api"
)

// Placeholder is shown for absent or non-finite values.
const Placeholder = "-"

// DisplayValue is a KPI ready for rendering.
type DisplayValue struct {
	Text    string
	Number  float64
	Numeric bool
	Missing bool
}

func (d DisplayValue) String() string { return d.Text }

// SelectLatest returns the record at position 0. The order is the backend's;
// timestamps are never consulted.
func SelectLatest(records []api.UploadRecord) (api.UploadRecord, bool) {
	if len(records) == 0 {
		return api.UploadRecord{}, false
	}
	return records[0], true
}

// Normalize turns a summary metric into a display value: absent and
// non-finite numbers become the placeholder, finite numbers are rounded to
// two decimals (half up), anything else is shown as is.
func Normalize(m api.Metric) DisplayValue {
	v := m.Value()
	if v == nil {
		return placeholder()
	}

	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return DisplayValue{Text: n.String()}
		}
		f = parsed
	case string:
		return DisplayValue{Text: n}
	default:
		return DisplayValue{Text: fmt.Sprint(v)}
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return placeholder()
	}
	r := Round2(f)
	return DisplayValue{Text: strconv.FormatFloat(r, 'f', -1, 64), Number: r, Numeric: true}
}

func placeholder() DisplayValue {
	return DisplayValue{Text: Placeholder, Missing: true}
}

// Round2 computes floor(x*100 + 0.5) / 100 on the decimal value of x, so
// 12.345 rounds to 12.35 even though its binary form is slightly below it.
// Results intentionally differ from rounding the binary value: 1.005 gives
// 1.01 here, while math.Floor(1.005*100+0.5)/100 gives 1.
func Round2(x float64) float64 {
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(x, 'f', -1, 64))
	if !ok {
		return math.Floor(x*100+0.5) / 100
	}
	r.Mul(r, big.NewRat(100, 1))
	r.Add(r, big.NewRat(1, 2))
	// Euclidean division by a positive denominator is floor.
	q := new(big.Int).Div(r.Num(), r.Denom())
	out, _ := new(big.Rat).SetFrac(q, big.NewInt(100)).Float64()
	return out
}
