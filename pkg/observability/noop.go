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

package observability

import (
	"context"
	"net/http"
	"time"
)

// NoopMetrics is a Recorder that does nothing.
type NoopMetrics struct{}

func (NoopMetrics) RecordTurn(context.Context, time.Duration, int, bool, string)          {}
func (NoopMetrics) RecordLLMCall(context.Context, string, bool, time.Duration, string)    {}
func (NoopMetrics) RecordToolCall(context.Context, string, time.Duration, string)         {}
func (NoopMetrics) RecordHTTPRequest(context.Context, string, string, int, time.Duration) {}
func (NoopMetrics) RecordSessionEvent(context.Context, string, string)                    {}

// Handler returns a handler that returns 503 Service Unavailable.
func (NoopMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("metrics not enabled"))
	})
}

var (
	_ Recorder = (*Metrics)(nil)
	_ Recorder = NoopMetrics{}
)
