package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/yungbote/autopilot-backend/internal/domain"
	"github.com/yungbote/autopilot-backend/internal/jobs/runtime"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/kestra"
	"github.com/yungbote/autopilot-backend/internal/services"
)

type fakeRuns struct {
	runs     map[string]*types.Run
	artefact *types.Artefact
	logs     []kestra.LogEntry
	logsErr  error
	stats    services.Stats
	trigger  services.TriggerRequest
}

func (f *fakeRuns) Get(_ context.Context, id string) (*types.Run, error) {
	if r, ok := f.runs[id]; ok {
		return r, nil
	}
	return nil, apierr.Wrap(apierr.ErrNotFound, "run %s", id)
}

func (f *fakeRuns) ListRecent(context.Context) ([]*types.Run, error) {
	out := make([]*types.Run, 0, len(f.runs))
	for _, r := range f.runs {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeRuns) Invalidate(context.Context, string) {}

func (f *fakeRuns) Trigger(_ context.Context, req services.TriggerRequest) (services.TriggerResult, error) {
	f.trigger = req
	return services.TriggerResult{Success: true, ExecutionID: "exec-1", StatusURL: "/api/status/exec-1"}, nil
}

func (f *fakeRuns) Logs(context.Context, string) ([]kestra.LogEntry, error) {
	return f.logs, f.logsErr
}

func (f *fakeRuns) Video(_ context.Context, id string) (*types.Artefact, error) {
	if f.artefact == nil || f.artefact.Session != id {
		return nil, apierr.Wrap(apierr.ErrNotFound, "artefact for %s", id)
	}
	return f.artefact, nil
}

func (f *fakeRuns) Stats(context.Context) (services.Stats, error) { return f.stats, nil }

type fakeDispatcher struct {
	got services.CompletionSignal
	res services.DispatchResult
	err error
}

func (f *fakeDispatcher) HandleCompletion(_ context.Context, sig services.CompletionSignal) (services.DispatchResult, error) {
	f.got = sig
	return f.res, f.err
}

func (f *fakeDispatcher) Orchestrate(context.Context, string) (*types.Run, error) {
	return nil, nil
}

type fakeTasks struct {
	infos []runtime.TaskInfo
}

func (f *fakeTasks) List() []runtime.TaskInfo { return f.infos }
func (f *fakeTasks) Active() int              { return len(f.infos) }

func (f *fakeTasks) Cancel(id string) (runtime.TaskInfo, error) {
	for _, t := range f.infos {
		if t.ID == id {
			return t, nil
		}
	}
	return runtime.TaskInfo{}, runtime.ErrTaskNotFound
}

func serve(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}
