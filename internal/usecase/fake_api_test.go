package usecase

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"busreg.io/stager/internal/domain"
	"busreg.io/stager/internal/pkg/logger"
	"busreg.io/stager/internal/stagingapi"
)

func init() {
	_ = logger.Init("error", "json")
}

type stagedReply struct {
	resp stagingapi.StagedResponse
	err  error
}

type reportReply struct {
	resp stagingapi.ReportResponse
	err  error
}

// fakeAPI replays scripted answers and counts calls per operation.
type fakeAPI struct {
	mu    sync.Mutex
	calls map[string]int

	processes [][]domain.StageProcess
	uploadID  string
	uploadErr error
	staged    []stagedReply
	reports   []reportReply

	commitErr   error
	discardErr  error
	commitGate  chan struct{}
	commitEnter chan struct{}
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(map[string]int), uploadID: "abc123"}
}

func (f *fakeAPI) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAPI) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeAPI) hit(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	return f.calls[op] - 1
}

func (f *fakeAPI) Upload(_ context.Context, _ string, r io.Reader) (stagingapi.UploadAccepted, error) {
	f.hit("upload")
	_, _ = io.Copy(io.Discard, r)
	if f.uploadErr != nil {
		return stagingapi.UploadAccepted{}, f.uploadErr
	}
	return stagingapi.UploadAccepted{ReportID: f.uploadID}, nil
}

func (f *fakeAPI) ListStageProcesses(context.Context) ([]domain.StageProcess, error) {
	i := f.hit("list")
	if i < len(f.processes) {
		return f.processes[i], nil
	}
	return nil, nil
}

func (f *fakeAPI) GetStaged(context.Context, string) (stagingapi.StagedResponse, error) {
	i := f.hit("staged")
	if i >= len(f.staged) {
		i = len(f.staged) - 1
	}
	return f.staged[i].resp, f.staged[i].err
}

func (f *fakeAPI) GetReport(context.Context, string) (stagingapi.ReportResponse, error) {
	i := f.hit("report")
	if i >= len(f.reports) {
		i = len(f.reports) - 1
	}
	return f.reports[i].resp, f.reports[i].err
}

func (f *fakeAPI) Commit(context.Context, string) error {
	f.hit("commit")
	if f.commitEnter != nil {
		close(f.commitEnter)
	}
	if f.commitGate != nil {
		<-f.commitGate
	}
	return f.commitErr
}

func (f *fakeAPI) Discard(context.Context, string) error {
	f.hit("discard")
	return f.discardErr
}

func notReady() stagedReply {
	return stagedReply{err: &stagingapi.StatusError{StatusCode: http.StatusTooEarly, Message: "Staging process is not done yet"}}
}

func pending() stagedReply {
	return stagedReply{resp: stagingapi.StagedResponse{Status: "Pending"}}
}

func completed(records ...domain.StagedRecord) stagedReply {
	return stagedReply{resp: stagingapi.StagedResponse{Status: "Completed", Records: records}}
}

func reportOf(r domain.Report) reportReply {
	return reportReply{resp: stagingapi.ReportResponse{ReportStatus: "Completed", Report: &r}}
}

// countingSleep records waits without sleeping.
type countingSleep struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *countingSleep) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *countingSleep) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.waits)
}

func testPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.Interval = time.Millisecond
	return p
}
