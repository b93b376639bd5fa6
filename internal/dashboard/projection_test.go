package dashboard

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/cheminsight/cheminsight/internal/api"
)

const singleRecordJSON = `[{"id": 1, "filename": "a.csv", "uploaded_at": "t1",
	"summary": {"total_equipment": 5, "avg_flowrate": 12.345, "avg_pressure": null,
	            "avg_temperature": 20, "type_distribution": {"Pump": 3, "Valve": 2}}}]`

func decodeRecords(t *testing.T, raw string) []api.UploadRecord {
	t.Helper()
	var records []api.UploadRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		t.Fatalf("decode records: %v", err)
	}
	return records
}

func TestProjectEmptyHistory(t *testing.T) {
	vm := Project(SessionState{Authenticated: true}, nil, TransientStatus{})

	for name, kpi := range map[string]DisplayValue{
		"total":       vm.KPIs.TotalEquipment,
		"flowrate":    vm.KPIs.AvgFlowrate,
		"pressure":    vm.KPIs.AvgPressure,
		"temperature": vm.KPIs.AvgTemperature,
	} {
		if kpi.Text != Placeholder {
			t.Errorf("%s: expected placeholder, got %q", name, kpi.Text)
		}
	}
	if vm.Chart.Labels == nil || len(vm.Chart.Labels) != 0 {
		t.Errorf("expected empty non-nil labels, got %#v", vm.Chart.Labels)
	}
	if vm.Chart.Values == nil || len(vm.Chart.Values) != 0 {
		t.Errorf("expected empty non-nil values, got %#v", vm.Chart.Values)
	}
	if len(vm.History) != 0 {
		t.Errorf("expected empty history, got %d items", len(vm.History))
	}
	if vm.Status.Count != 0 || vm.Status.HasUploaded || vm.Status.LastUpload != "None" {
		t.Errorf("unexpected status %+v", vm.Status)
	}
	if vm.Trends.Len() != 0 {
		t.Errorf("expected no trend points, got %d", vm.Trends.Len())
	}
}

func TestProjectSingleRecord(t *testing.T) {
	records := decodeRecords(t, singleRecordJSON)

	vm := Project(SessionState{Authenticated: true}, records, TransientStatus{})

	if vm.KPIs.AvgFlowrate.Number != 12.35 || vm.KPIs.AvgFlowrate.Text != "12.35" {
		t.Errorf("expected flowrate 12.35, got %+v", vm.KPIs.AvgFlowrate)
	}
	if vm.KPIs.AvgPressure.Text != Placeholder {
		t.Errorf("expected pressure placeholder, got %+v", vm.KPIs.AvgPressure)
	}
	if vm.KPIs.TotalEquipment.Text != "5" || vm.KPIs.AvgTemperature.Text != "20" {
		t.Errorf("unexpected KPIs %+v", vm.KPIs)
	}
	if !reflect.DeepEqual(vm.Chart.Labels, []string{"Pump", "Valve"}) {
		t.Errorf("expected labels [Pump Valve], got %v", vm.Chart.Labels)
	}
	if !reflect.DeepEqual(vm.Chart.Values, []float64{3, 2}) {
		t.Errorf("expected values [3 2], got %v", vm.Chart.Values)
	}
	if len(vm.History) != 1 || vm.History[0].Filename != "a.csv" || vm.History[0].UploadedAt != "t1" {
		t.Errorf("unexpected history %+v", vm.History)
	}
	if vm.History[0].Display != "t1" {
		t.Errorf("expected unparseable time shown raw, got %q", vm.History[0].Display)
	}
	if vm.Status.Count != 1 || !vm.Status.HasUploaded || vm.Status.LastUpload != "Today" {
		t.Errorf("unexpected status %+v", vm.Status)
	}
	if vm.Status.ActiveEquipment.Text != "5" {
		t.Errorf("expected active equipment 5, got %q", vm.Status.ActiveEquipment.Text)
	}
}

func TestProjectDeterministic(t *testing.T) {
	status := TransientStatus{ErrorMessage: "e", SuccessMessage: "s", IsUploading: true}

	tests := []struct {
		name    string
		records []api.UploadRecord
	}{
		{"missing pressure", decodeRecords(t, singleRecordJSON)},
		{"missing flowrate", []api.UploadRecord{sampleRecord("2", "b.csv", nil), sampleRecord("1", "a.csv", 1.25)}},
		{"text metric", []api.UploadRecord{sampleRecord("1", "a.csv", "n/a")}},
		{"empty", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Project(SessionState{Authenticated: true}, tt.records, status)
			b := Project(SessionState{Authenticated: true}, tt.records, status)
			if !reflect.DeepEqual(a, b) {
				t.Fatalf("expected identical view models:\n%+v\n%+v", a, b)
			}
			if !a.IsUploading || a.ErrorMessage != "e" || a.SuccessMessage != "s" {
				t.Errorf("expected status carried into the view, got %+v", a)
			}
		})
	}
}

func TestChartTooltip(t *testing.T) {
	c := ChartSeries{Labels: []string{"Pump", "Valve", "Compressor"}, Values: []float64{3, 2, 1}}

	tests := []struct {
		i    int
		want string
	}{
		{0, "Pump: 3 (50.0%)"},
		{1, "Valve: 2 (33.3%)"},
		{2, "Compressor: 1 (16.7%)"},
		{3, ""},
	}
	for _, tt := range tests {
		if got := c.Tooltip(tt.i); got != tt.want {
			t.Errorf("Tooltip(%d) = %q, want %q", tt.i, got, tt.want)
		}
	}

	zero := ChartSeries{Labels: []string{"Pump"}, Values: []float64{0}}
	if got := zero.Tooltip(0); got != "Pump: 0 (0.0%)" {
		t.Errorf("expected zero total handled, got %q", got)
	}
}

func TestTrendsOldestFirst(t *testing.T) {
	records := []api.UploadRecord{
		sampleRecord("3", "c.csv", 3.0),
		sampleRecord("2", "b.csv", nil),
		sampleRecord("1", "a.csv", 1.0),
	}

	trends := Trends(records, 5)
	if !reflect.DeepEqual(trends.Labels, []string{"#1", "#2", "#3"}) {
		t.Fatalf("unexpected labels %v", trends.Labels)
	}
	if trends.Flowrate[0].Number != 1 || trends.Flowrate[2].Number != 3 {
		t.Errorf("expected oldest first, got %v", trends.Flowrate)
	}
	if trends.Flowrate[1].Numeric || !trends.Flowrate[1].Missing {
		t.Errorf("expected gap for missing value, got %+v", trends.Flowrate[1])
	}
	if trends.Pressure[0].Numeric {
		t.Errorf("expected gap for missing pressure, got %+v", trends.Pressure[0])
	}

	window := Trends(records, 2)
	if window.Len() != 2 || window.Flowrate[1].Number != 3 {
		t.Errorf("expected the two newest records, got %+v", window)
	}
}

func TestFormatUploadTime(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"2024-05-01T14:30:00Z", "01 May 2024  02:30 PM"},
		{"2024-05-01T09:05:07.123456+02:00", "01 May 2024  09:05 AM"},
		{"2024-05-01T09:05:07.123456", "01 May 2024  09:05 AM"},
		{"yesterday", "yesterday"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := FormatUploadTime(tt.raw); got != tt.want {
			t.Errorf("FormatUploadTime(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}
