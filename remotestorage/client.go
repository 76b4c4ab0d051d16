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

// Package remotestorage is the client side of the push/pull protocol.
// Transient transport failures are retried with jittered exponential
// backoff; protocol rejections are surfaced once, mapped back to the
// engine's sentinel errors.
package remotestorage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"

	"github.com/scorehub/scorevc/remotesapi"
	"github.com/scorehub/scorevc/scoredb"
)

// ErrRemoteNotFound is returned when the remote does not know the
// requested repository, branch or revision.
var ErrRemoteNotFound = errors.New("not found on remote")

const defaultRetries = 5

// RemoteError is a protocol rejection the retry loop will not retry.
type RemoteError struct {
	Code       string
	Message    string
	RemoteHead string
	Status     int
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote rejected request: %s (%s)", e.Message, e.Code)
}

// Client talks to one repository on one remote.
type Client struct {
	baseURL string
	repoID  string
	hc      *http.Client
	lgr     *logrus.Entry
	retries int
}

// NewClient returns a client for |repoID| hosted at |baseURL|.
func NewClient(baseURL, repoID string, lgr *logrus.Entry) *Client {
	if lgr == nil {
		lgr = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		baseURL: baseURL,
		repoID:  repoID,
		hc:      &http.Client{Timeout: 30 * time.Second},
		lgr:     lgr,
		retries: defaultRetries,
	}
}

// Push sends a push request. The RepoID field is overridden with the
// client's repository.
func (c *Client) Push(ctx context.Context, req remotesapi.PushRequest) (remotesapi.PushResponse, error) {
	req.RepoID = c.repoID
	var resp remotesapi.PushResponse
	err := c.post(ctx, "push", req, &resp)
	return resp, err
}

// Pull fetches everything the request's have-sets lack.
func (c *Client) Pull(ctx context.Context, req remotesapi.PullRequest) (remotesapi.PullResponse, error) {
	req.RepoID = c.repoID
	var resp remotesapi.PullResponse
	err := c.post(ctx, "pull", req, &resp)
	return resp, err
}

// Branches lists the remote's branches for this repository.
func (c *Client) Branches(ctx context.Context) ([]scoredb.Branch, error) {
	var branches []scoredb.Branch
	err := c.do(ctx, http.MethodGet, c.url("branches"), nil, &branches)
	return branches, err
}

func (c *Client) post(ctx context.Context, endpoint string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, c.url(endpoint), data, out)
}

func (c *Client) url(endpoint string) string {
	return fmt.Sprintf("%s/repos/%s/%s", c.baseURL, c.repoID, endpoint)
}

// do runs one request with retries. Network errors and 5xx answers are
// retried; anything else resolves immediately.
func (c *Client) do(ctx context.Context, method, url string, body []byte, out any) error {
	bo := &backoff.Backoff{
		Min:    100 * time.Millisecond,
		Max:    5 * time.Second,
		Jitter: true,
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			d := bo.Duration()
			c.lgr.WithFields(logrus.Fields{
				"url":     url,
				"attempt": attempt,
				"backoff": d,
			}).Debug("retrying request")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d):
			}
		}

		retryable, err := c.attempt(ctx, method, url, body, out)
		if err == nil {
			return nil
		}
		if !retryable {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("request failed after %d attempts: %w", c.retries+1, lastErr)
}

func (c *Client) attempt(ctx context.Context, method, url string, body []byte, out any) (retryable bool, err error) {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return true, fmt.Errorf("remote returned %s", resp.Status)
	}
	if resp.StatusCode >= 400 {
		return false, decodeError(resp)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return false, fmt.Errorf("undecodable response from %s: %w", url, err)
		}
	}
	return false, nil
}

// decodeError maps a protocol error body back to the engine's sentinels so
// callers can errors.Is on the same errors locally and remotely.
func decodeError(resp *http.Response) error {
	var body remotesapi.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return fmt.Errorf("remote returned %s", resp.Status)
	}

	remoteErr := &RemoteError{
		Code:       body.Code,
		Message:    body.Message,
		RemoteHead: body.RemoteHead,
		Status:     resp.StatusCode,
	}
	switch body.Code {
	case remotesapi.CodeNonFastForward:
		return fmt.Errorf("%w: %w", scoredb.ErrNonFastForward, remoteErr)
	case remotesapi.CodeHeadMoved:
		return fmt.Errorf("%w: %w", scoredb.ErrHeadMoved, remoteErr)
	case remotesapi.CodeNotFound:
		return fmt.Errorf("%w: %w", ErrRemoteNotFound, remoteErr)
	case remotesapi.CodeProtocolViolation:
		return fmt.Errorf("%w: %w", scoredb.ErrProtocolViolation, remoteErr)
	default:
		return remoteErr
	}
}
