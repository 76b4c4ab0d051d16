// Copyright 2024 Scorehub, Inc.
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

package remotesrv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/scorehub/scorevc/remotesapi"
	"github.com/scorehub/scorevc/scoredb"
)

// Server serves the push/pull protocol over HTTP.
type Server struct {
	cfg Config
	hub *Hub
	lgr *logrus.Entry

	srv      *http.Server
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewServer wires |hub| behind an HTTP listener configured by |cfg|.
func NewServer(cfg Config, hub *Hub, lgr *logrus.Entry) *Server {
	if lgr == nil {
		lgr = logrus.NewEntry(logrus.StandardLogger())
	}
	s := &Server{
		cfg:      cfg,
		hub:      hub,
		lgr:      lgr,
		stopChan: make(chan struct{}),
	}
	s.srv = &http.Server{
		Addr:         cfg.Addr(),
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler returns the protocol routes. Exposed separately so tests can
// drive the server through httptest without a listener.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()
	router.POST("/repos/:repo/push", s.handlePush)
	router.POST("/repos/:repo/pull", s.handlePull)
	router.GET("/repos/:repo/branches", s.handleBranches)
	router.GET("/health", s.handleHealth)
	return router
}

// ListenAndServe serves until GracefulStop is called or the listener
// fails.
func (s *Server) ListenAndServe() error {
	s.wg.Add(1)
	defer s.wg.Done()

	s.lgr.WithField("addr", s.cfg.Addr()).Info("server listening")
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// GracefulStop drains in-flight requests and stops the listener.
func (s *Server) GracefulStop(ctx context.Context) error {
	close(s.stopChan)
	err := s.srv.Shutdown(ctx)
	s.wg.Wait()
	s.lgr.Info("server stopped")
	return err
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	start := time.Now()

	var req remotesapi.PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "", "", fmt.Errorf("%w: undecodable request body: %v", ErrBadRequest, err))
		return
	}
	req.RepoID = params.ByName("repo")

	resp, err := s.hub.Push(r.Context(), req)
	if err != nil {
		s.writeError(w, req.RepoID, req.Branch, err)
		return
	}

	s.lgr.WithFields(logrus.Fields{
		"repo":    req.RepoID,
		"branch":  req.Branch,
		"elapsed": time.Since(start),
	}).Debug("push handled")
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	var req remotesapi.PullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "", "", fmt.Errorf("%w: undecodable request body: %v", ErrBadRequest, err))
		return
	}
	req.RepoID = params.ByName("repo")

	resp, err := s.hub.Pull(r.Context(), req)
	if err != nil {
		s.writeError(w, req.RepoID, req.Branch, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBranches(w http.ResponseWriter, r *http.Request, params httprouter.Params) {
	branches, err := s.hub.Branches(params.ByName("repo"))
	if err != nil {
		s.writeError(w, params.ByName("repo"), "", err)
		return
	}
	writeJSON(w, http.StatusOK, branches)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps hub errors to protocol error responses. Non-fast-forward
// and head-race rejections include the current remote head so clients can
// pull and retry.
func (s *Server) writeError(w http.ResponseWriter, repoID, branch string, err error) {
	resp := remotesapi.ErrorResponse{Message: err.Error()}
	status := http.StatusInternalServerError
	resp.Code = remotesapi.CodeInternal

	switch {
	case errors.Is(err, ErrBadRequest):
		status, resp.Code = http.StatusBadRequest, remotesapi.CodeBadRequest
	case errors.Is(err, ErrRepoNotFound),
		errors.Is(err, scoredb.ErrBranchNotFound),
		errors.Is(err, scoredb.ErrRevisionNotFound):
		status, resp.Code = http.StatusNotFound, remotesapi.CodeNotFound
	case errors.Is(err, scoredb.ErrNonFastForward):
		status, resp.Code = http.StatusConflict, remotesapi.CodeNonFastForward
	case errors.Is(err, scoredb.ErrHeadMoved):
		status, resp.Code = http.StatusConflict, remotesapi.CodeHeadMoved
	case errors.Is(err, scoredb.ErrProtocolViolation):
		status, resp.Code = http.StatusUnprocessableEntity, remotesapi.CodeProtocolViolation
	}

	if resp.Code == remotesapi.CodeNonFastForward || resp.Code == remotesapi.CodeHeadMoved {
		if head, ok := s.hub.Head(repoID, branch); ok {
			resp.RemoteHead = string(head)
		}
	}
	if status == http.StatusInternalServerError {
		s.lgr.WithError(err).Error("request failed")
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
