package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cheminsight/cheminsight/internal/dashboard"
)

type exportJSON struct {
	Kind      string `json:"kind"`
	Location  string `json:"location"`
	Size      int64  `json:"size_bytes"`
	CreatedAt string `json:"created_at"`
}

type statusJSON struct {
	BaseURL         string       `json:"base_url"`
	Authenticated   bool         `json:"authenticated"`
	Uploads         int          `json:"uploads"`
	ActiveEquipment string       `json:"active_equipment,omitempty"`
	LastUpload      string       `json:"last_upload"`
	LatestFile      string       `json:"latest_file,omitempty"`
	RecentExports   []exportJSON `json:"recent_exports,omitempty"`
	Error           string       `json:"error,omitempty"`
}

type historyItemJSON struct {
	ID             string `json:"id"`
	Filename       string `json:"filename"`
	UploadedAt     string `json:"uploaded_at"`
	TotalEquipment string `json:"total_equipment"`
	AvgFlowrate    string `json:"avg_flowrate"`
}

type categoryJSON struct {
	Label   string  `json:"label"`
	Count   float64 `json:"count"`
	Percent float64 `json:"percent"`
}

type summaryJSON struct {
	Filename       string         `json:"filename,omitempty"`
	TotalEquipment string         `json:"total_equipment"`
	AvgFlowrate    string         `json:"avg_flowrate"`
	AvgPressure    string         `json:"avg_pressure"`
	AvgTemperature string         `json:"avg_temperature"`
	Distribution   []categoryJSON `json:"type_distribution"`
}

func historyToJSON(items []dashboard.HistoryItem) []historyItemJSON {
	out := make([]historyItemJSON, len(items))
	for i, item := range items {
		out[i] = historyItemJSON{
			ID:             item.ID,
			Filename:       item.Filename,
			UploadedAt:     item.UploadedAt,
			TotalEquipment: item.TotalEquipment.String(),
			AvgFlowrate:    item.AvgFlowrate.String(),
		}
	}
	return out
}

func summaryToJSON(vm dashboard.ViewModel) summaryJSON {
	s := summaryJSON{
		TotalEquipment: vm.KPIs.TotalEquipment.String(),
		AvgFlowrate:    vm.KPIs.AvgFlowrate.String(),
		AvgPressure:    vm.KPIs.AvgPressure.String(),
		AvgTemperature: vm.KPIs.AvgTemperature.String(),
		Distribution:   make([]categoryJSON, len(vm.Chart.Labels)),
	}
	if len(vm.History) > 0 {
		s.Filename = vm.History[0].Filename
	}
	for i, label := range vm.Chart.Labels {
		s.Distribution[i] = categoryJSON{
			Label:   label,
			Count:   vm.Chart.Values[i],
			Percent: dashboard.Round2(vm.Chart.Percent(i)),
		}
	}
	return s
}

func printJSON(data interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}

func printStatusTable(st statusJSON) {
	writeStatusTable(os.Stdout, st)
}

func writeStatusTable(out io.Writer, st statusJSON) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Backend:\t%s\n", st.BaseURL)
	fmt.Fprintf(w, "Logged in:\t%t\n", st.Authenticated)
	if st.Authenticated {
		fmt.Fprintf(w, "Uploads:\t%d\n", st.Uploads)
		fmt.Fprintf(w, "Active equipment:\t%s\n", st.ActiveEquipment)
		fmt.Fprintf(w, "Last upload:\t%s\n", st.LastUpload)
		if st.LatestFile != "" {
			fmt.Fprintf(w, "Latest file:\t%s\n", st.LatestFile)
		}
	}
	if st.Error != "" {
		fmt.Fprintf(w, "Error:\t%s\n", st.Error)
	}
	w.Flush()

	if len(st.RecentExports) > 0 {
		fmt.Fprintln(out)
		w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KIND\tLOCATION\tBYTES\tCREATED_AT")
		for _, e := range st.RecentExports {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.Kind, e.Location, e.Size, e.CreatedAt)
		}
		w.Flush()
	}
}

func printHistoryTable(items []dashboard.HistoryItem) {
	writeHistoryTable(os.Stdout, items)
}

func writeHistoryTable(out io.Writer, items []dashboard.HistoryItem) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFILE\tUPLOADED\tTOTAL\tAVG_FLOW")
	for _, item := range items {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", item.ID, item.Filename, item.Display, item.TotalEquipment, item.AvgFlowrate)
	}
	w.Flush()
}

func printSummaryTable(vm dashboard.ViewModel) {
	writeSummaryTable(os.Stdout, vm)
}

func writeSummaryTable(out io.Writer, vm dashboard.ViewModel) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if len(vm.History) > 0 {
		fmt.Fprintf(w, "Latest upload:\t%s\n", vm.History[0].Filename)
	}
	fmt.Fprintf(w, "Total equipment:\t%s\n", vm.KPIs.TotalEquipment)
	fmt.Fprintf(w, "Avg flowrate:\t%s\n", vm.KPIs.AvgFlowrate)
	fmt.Fprintf(w, "Avg pressure:\t%s\n", vm.KPIs.AvgPressure)
	fmt.Fprintf(w, "Avg temperature:\t%s\n", vm.KPIs.AvgTemperature)
	w.Flush()

	if len(vm.Chart.Labels) == 0 {
		return
	}
	fmt.Fprintln(out)
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tCOUNT\tSHARE")
	for i, label := range vm.Chart.Labels {
		fmt.Fprintf(w, "%s\t%g\t%.1f%%\n", label, vm.Chart.Values[i], vm.Chart.Percent(i))
	}
	w.Flush()
}
