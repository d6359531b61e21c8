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
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"golang.org/x/net/netutil"
)

// Server serves a Handler on a bound listener.
type Server struct {
	l   net.Listener
	srv *http.Server
}

// Listen binds addr.  At most maxConns connections are served at once
// (unlimited when maxConns <= 0); long polls count against the limit.
func Listen(addr string, maxConns int, h http.Handler) (*Server, error) {
	l, e := net.Listen("tcp", addr)
	if e != nil {
		return nil, e
	}
	if maxConns > 0 {
		l = netutil.LimitListener(l, maxConns)
	}
	return &Server{
		l: l,
		srv: &http.Server{
			Handler:           h,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Addr is the bound address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	return s.l.Addr()
}

// Serve runs until Shutdown, which is not reported as an error.
func (s *Server) Serve() error {
	if e := s.srv.Serve(s.l); e != nil && !errors.Is(e, http.ErrServerClosed) {
		return e
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
