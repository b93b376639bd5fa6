package dashboard

import (
	"fmt"
	"strconv"
	"time"

	"github.com/cheminsight/cheminsight/internal/api"
)

// DisplayTimeLayout is used for upload timestamps that parse as ISO 8601.
const DisplayTimeLayout = "02 Jan 2006  03:04 PM"

// DefaultTrendWindow is how many recent uploads the trend series cover.
const DefaultTrendWindow = 5

var uploadTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
}

// SessionState is the part of the session the view depends on.
type SessionState struct {
	Authenticated bool
}

// KPIs are the normalized headline values of the latest upload.
type KPIs struct {
	TotalEquipment DisplayValue
	AvgFlowrate    DisplayValue
	AvgPressure    DisplayValue
	AvgTemperature DisplayValue
}

// ChartSeries is the category distribution of the latest upload, in the
// order the backend listed the categories.
type ChartSeries struct {
	Labels []string
	Values []float64
}

func (c ChartSeries) Total() float64 {
	var total float64
	for _, v := range c.Values {
		total += v
	}
	return total
}

// Percent is value i as a share of the series total, 0 when the total is 0.
func (c ChartSeries) Percent(i int) float64 {
	total := c.Total()
	if i < 0 || i >= len(c.Values) || total == 0 {
		return 0
	}
	return c.Values[i] / total * 100
}

// Tooltip formats entry i as "Label: value (p%)".
func (c ChartSeries) Tooltip(i int) string {
	if i < 0 || i >= len(c.Labels) || i >= len(c.Values) {
		return ""
	}
	return fmt.Sprintf("%s: %s (%.1f%%)", c.Labels[i], strconv.FormatFloat(c.Values[i], 'f', -1, 64), c.Percent(i))
}

// HistoryItem is one row of the history list.
type HistoryItem struct {
	ID             string
	Filename       string
	UploadedAt     string
	Display        string
	TotalEquipment DisplayValue
	AvgFlowrate    DisplayValue
}

// StatusPanel summarizes the history as a whole.
type StatusPanel struct {
	Count           int
	HasUploaded     bool
	ActiveEquipment DisplayValue
	LastUpload      string
}

// TrendSeries holds normalized averages of recent uploads, oldest first. A
// point that is not Numeric is a gap.
type TrendSeries struct {
	Labels      []string
	Flowrate    []DisplayValue
	Pressure    []DisplayValue
	Temperature []DisplayValue
}

// Len is the number of uploads covered.
func (t TrendSeries) Len() int { return len(t.Labels) }

// ViewModel is everything the screen renders.
type ViewModel struct {
	Authenticated  bool
	KPIs           KPIs
	Chart          ChartSeries
	History        []HistoryItem
	Status         StatusPanel
	Trends         TrendSeries
	ErrorMessage   string
	SuccessMessage string
	IsUploading    bool
	PendingFile    string
}

// Project derives everything the dashboard shows. It has no side effects and
// the same input always yields the same ViewModel.
func Project(session SessionState, records []api.UploadRecord, status TransientStatus) ViewModel {
	vm := ViewModel{
		Authenticated:  session.Authenticated,
		ErrorMessage:   status.ErrorMessage,
		SuccessMessage: status.SuccessMessage,
		IsUploading:    status.IsUploading,
		KPIs: KPIs{
			TotalEquipment: placeholder(),
			AvgFlowrate:    placeholder(),
			AvgPressure:    placeholder(),
			AvgTemperature: placeholder(),
		},
		Chart: ChartSeries{Labels: []string{}, Values: []float64{}},
		Trends: Trends(records, DefaultTrendWindow),
	}

	if latest, ok := SelectLatest(records); ok {
		s := latest.Summary
		vm.KPIs = KPIs{
			TotalEquipment: Normalize(s.TotalEquipment),
			AvgFlowrate:    Normalize(s.AvgFlowrate),
			AvgPressure:    Normalize(s.AvgPressure),
			AvgTemperature: Normalize(s.AvgTemperature),
		}
		vm.Chart = ChartSeries{
			Labels: s.TypeDistribution.Labels(),
			Values: s.TypeDistribution.Values(),
		}
	}

	vm.History = make([]HistoryItem, len(records))
	for i, r := range records {
		vm.History[i] = HistoryItem{
			ID:             string(r.ID),
			Filename:       r.Filename,
			UploadedAt:     r.UploadedAt,
			Display:        FormatUploadTime(r.UploadedAt),
			TotalEquipment: Normalize(r.Summary.TotalEquipment),
			AvgFlowrate:    Normalize(r.Summary.AvgFlowrate),
		}
	}

	vm.Status = StatusPanel{
		Count:           len(records),
		HasUploaded:     len(records) > 0,
		ActiveEquipment: vm.KPIs.TotalEquipment,
		LastUpload:      "None",
	}
	if vm.Status.HasUploaded {
		vm.Status.LastUpload = "Today"
	}

	return vm
}

// Trends collects the averages of the newest n records, ordered oldest first
// and labelled #1..#n.
func Trends(records []api.UploadRecord, n int) TrendSeries {
	if n <= 0 || n > len(records) {
		n = len(records)
	}
	t := TrendSeries{
		Labels:      make([]string, n),
		Flowrate:    make([]DisplayValue, n),
		Pressure:    make([]DisplayValue, n),
		Temperature: make([]DisplayValue, n),
	}
	for i := 0; i < n; i++ {
		r := records[n-1-i]
		t.Labels[i] = fmt.Sprintf("#%d", i+1)
		t.Flowrate[i] = Normalize(r.Summary.AvgFlowrate)
		t.Pressure[i] = Normalize(r.Summary.AvgPressure)
		t.Temperature[i] = Normalize(r.Summary.AvgTemperature)
	}
	return t
}

// FormatUploadTime renders an ISO timestamp for display and returns the
// input unchanged when it does not parse.
func FormatUploadTime(raw string) string {
	for _, layout := range uploadTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.Format(DisplayTimeLayout)
		}
	}
	return raw
}
