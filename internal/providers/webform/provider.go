// Package webform posts url-encoded submissions to external forms.
package webform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	obstracing "github.com/smallbiznis/labdesk/internal/observability/tracing"
)

var ErrRejected = errors.New("form_submission_rejected")

type Submitter interface {
	Submit(ctx context.Context, endpoint string, fields map[string]string) error
}

type HTTPSubmitter struct {
	client *http.Client
}

func NewHTTPSubmitter() *HTTPSubmitter {
	return &HTTPSubmitter{
		client: obstracing.WrapHTTPClient(&http.Client{Timeout: 15 * time.Second}),
	}
}

func (s *HTTPSubmitter) Submit(ctx context.Context, endpoint string, fields map[string]string) error {
	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: status %d", ErrRejected, resp.StatusCode)
	}
	return nil
}

// Submission is one recorded call to Recorder.Submit.
type Submission struct {
	Endpoint string
	Fields   map[string]string
}

// Recorder keeps submissions in memory.
type Recorder struct {
	mu          sync.Mutex
	submissions []Submission
	Fail        error
}

func (r *Recorder) Submit(ctx context.Context, endpoint string, fields map[string]string) error {
	if r.Fail != nil {
		return r.Fail
	}
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	r.mu.Lock()
	r.submissions = append(r.submissions, Submission{Endpoint: endpoint, Fields: copied})
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Submissions() []Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Submission, len(r.submissions))
	copy(out, r.submissions)
	return out
}
