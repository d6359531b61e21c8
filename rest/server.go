// Copyright 2026 The Tandem Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use file except in compliance with the License.
// You may obtain a copy of the license at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package rest

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/tandem-run/tandem"
)

// Source is what the handler reports on.  *tandem.Supervisor implements
// it.
type Source interface {
	Name() string
	Created() time.Time
	ShutdownRequested() bool
	Live() int
	Processes() []tandem.ProcessStatus
	Process(name string) (tandem.ProcessStatus, bool)
	Output() *tandem.OutputLog
}

// Handler wraps a Source, adding http.Handler functionality.
type Handler struct {
	src Source
	r   *mux.Router
}

func (h *Handler) internalError(w http.ResponseWriter, e error) {
	http.Error(w, e.Error(), http.StatusInternalServerError)
}

func (h *Handler) writeJson(w http.ResponseWriter, v interface{}) {
	if b, e := json.Marshal(v); e != nil {
		h.internalError(w, e)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.Write(b)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, e *Error) {
	if b, err := json.Marshal(e); err != nil {
		h.internalError(w, err)
	} else {
		w.Header().Set("Content-Type", mimeJson)
		w.WriteHeader(e.Code)
		w.Write(b)
	}
}

func (h *Handler) getSupervisor(w http.ResponseWriter, r *http.Request) {
	h.writeJson(w, &SupervisorInfo{
		Name:              h.src.Name(),
		Created:           h.src.Created(),
		ShutdownRequested: h.src.ShutdownRequested(),
		Live:              h.src.Live(),
	})
}

func (h *Handler) listProcesses(w http.ResponseWriter, r *http.Request) {
	procs := h.src.Processes()
	l := make([]string, 0, len(procs))
	for _, p := range procs {
		l = append(l, p.Spec.Name)
	}
	h.writeJson(w, l)
}

func (h *Handler) findProcess(name string) (tandem.ProcessStatus, *Error) {
	if st, ok := h.src.Process(name); ok {
		return st, nil
	}
	return tandem.ProcessStatus{}, &Error{http.StatusNotFound, "Process not found"}
}

func (h *Handler) getProcess(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["process"]
	if st, e := h.findProcess(name); e != nil {
		h.writeError(w, e)
	} else {
		h.writeJson(w, newProcessInfo(st))
	}
}

func etag(id int64) string {
	return `"` + strconv.FormatInt(id, 10) + `"`
}

func parseEtag(s string) (int64, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "W/")
	id, e := strconv.ParseInt(strings.Trim(s, `"`), 10, 64)
	return id, e == nil
}

func pollTime(r *http.Request) time.Duration {
	secs, e := strconv.Atoi(r.Header.Get(PollTimeHeader))
	if e != nil || secs <= 0 {
		return 0
	}
	d := time.Duration(secs) * time.Second
	if d > MaxPollTime {
		d = MaxPollTime
	}
	return d
}

// getLog returns the recent output of a process.  The response carries an
// ETag; a request with a matching If-None-Match gets 304, after waiting
// for new output for up to the PollTimeHeader time.
func (h *Handler) getLog(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["process"]
	if _, e := h.findProcess(name); e != nil {
		h.writeError(w, e)
		return
	}
	log := h.src.Output().Log(name)

	var last int64
	if id, ok := parseEtag(r.Header.Get("If-None-Match")); ok {
		last = id
		if d := pollTime(r); d > 0 {
			log.Watch(last, d)
		}
	}
	recs, id := log.GetRecords(last)
	w.Header().Set("ETag", etag(id))
	if recs == nil {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	h.writeJson(w, recs)
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	h.r.ServeHTTP(w, req)
}

// NewHandler returns the read-only status API for src.
func NewHandler(src Source) *Handler {
	r := mux.NewRouter()
	h := &Handler{src: src, r: r}
	r.HandleFunc("/supervisor", h.getSupervisor).Methods("GET")
	r.HandleFunc("/processes", h.listProcesses).Methods("GET")
	r.HandleFunc("/processes/{process}", h.getProcess).Methods("GET")
	r.HandleFunc("/processes/{process}/log", h.getLog).Methods("GET")
	r.HandleFunc("/processes/{process}/log/stream", h.streamLog).Methods("GET")
	return h
}
