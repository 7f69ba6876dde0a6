// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ledgertool

// Chart types understood by the web client.
const (
	ChartBar           = "bar"
	ChartHorizontalBar = "bar_h"
	ChartLine          = "line"
	ChartPie           = "pie"
)

// Chart is a chart specification emitted as a tool artifact.
type Chart struct {
	Type   string    `json:"type"`
	Title  string    `json:"title"`
	Data   ChartData `json:"data"`
	Height int       `json:"height,omitempty"`
}

type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

type Dataset struct {
	Name   string    `json:"name"`
	Values []float64 `json:"values"`
}

func singleSeries(chartType, title, series string, labels []string, values []float64, height int) Chart {
	if labels == nil {
		labels = []string{}
	}
	if values == nil {
		values = []float64{}
	}
	return Chart{
		Type:   chartType,
		Title:  title,
		Height: height,
		Data: ChartData{
			Labels:   labels,
			Datasets: []Dataset{{Name: series, Values: values}},
		},
	}
}
