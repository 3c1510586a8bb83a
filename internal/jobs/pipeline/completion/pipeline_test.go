package completion

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/yungbote/autopilot-backend/internal/data/repos/media"
	"github.com/yungbote/autopilot-backend/internal/data/repos/testutil"
	types "github.com/yungbote/autopilot-backend/internal/domain"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/coderabbit"
	"github.com/yungbote/autopilot-backend/internal/platform/dbctx"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
	"github.com/yungbote/autopilot-backend/internal/platform/objectstore"
	"github.com/yungbote/autopilot-backend/internal/services"
)

type fakeInsights struct {
	out coderabbit.Insights
	err error
}

func (f *fakeInsights) Fetch(context.Context, string) (coderabbit.Insights, error) {
	return f.out, f.err
}

type fakeReports struct {
	out string
	err error
}

func (f *fakeReports) Generate(context.Context, coderabbit.Insights) (string, error) {
	return f.out, f.err
}

type fakePrompts struct {
	out string
	err error
}

func (f *fakePrompts) Build(context.Context, coderabbit.Insights) (string, error) {
	return f.out, f.err
}

type fakeProvider struct {
	name       string
	configured bool
	out        []byte
	err        error
	calls      int
}

func (f *fakeProvider) Name() string     { return f.name }
func (f *fakeProvider) Configured() bool { return f.configured }
func (f *fakeProvider) Generate(context.Context, string) ([]byte, error) {
	f.calls++
	return f.out, f.err
}

type failingArtefacts struct {
	media.ArtefactRepo
	err error
}

func (f *failingArtefacts) Upsert(dbctx.Context, *types.Artefact) (*types.Artefact, error) {
	return nil, f.err
}

type fixture struct {
	deps      Deps
	artefacts media.ArtefactRepo
	veo       *fakeProvider
	pika      *fakeProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := logger.Nop()
	artefacts := media.NewArtefactRepo(testutil.DB(t), log)
	veo := &fakeProvider{name: "veo", configured: true, err: errors.New("quota")}
	pika := &fakeProvider{name: "pika", configured: true, out: []byte("....ftypmp42")}
	return &fixture{
		deps: Deps{
			Log:       log,
			Insights:  &fakeInsights{out: coderabbit.Insights{"repo": "acme/api", "fixed": 4}},
			Reports:   &fakeReports{out: "all good"},
			Prompts:   &fakePrompts{out: "a calm server room"},
			Videos:    services.NewVideoChain(log, nil, veo, pika),
			Artefacts: artefacts,
		},
		artefacts: artefacts,
		veo:       veo,
		pika:      pika,
	}
}

func (f *fixture) run(t *testing.T) (Result, error) {
	t.Helper()
	p, err := New(f.deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p.Run(context.Background(), Input{ExecutionID: "exec-1", RepoURL: "https://github.com/acme/api", UserEmail: "dev@acme.io"})
}

func TestRunStoresArtefactWithFallbackProvider(t *testing.T) {
	f := newFixture(t)
	res, err := f.run(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Message != MessageWithReport || res.Provider != "pika" || res.ArtefactID == "" {
		t.Fatalf("result: got=%+v", res)
	}
	if f.veo.calls != 1 || f.pika.calls != 1 {
		t.Fatalf("provider calls: veo=%d pika=%d", f.veo.calls, f.pika.calls)
	}

	a, err := f.artefacts.GetBySession(dbctx.Context{Ctx: context.Background()}, "exec-1")
	if err != nil {
		t.Fatalf("GetBySession: %v", err)
	}
	if a.ID.String() != res.ArtefactID {
		t.Fatalf("artefact id: want=%s got=%s", res.ArtefactID, a.ID)
	}
	if a.Report == nil || *a.Report != "all good" {
		t.Fatalf("report: got=%v", a.Report)
	}
	if a.Prompt != "a calm server room" || string(a.VideoBytes) != "....ftypmp42" || a.ContentType != "video/mp4" {
		t.Fatalf("artefact: got=%+v", a)
	}
	if a.UserEmail != "dev@acme.io" || a.Tool != "video_generation" {
		t.Fatalf("artefact owner/tool: got=%+v", a)
	}
}

func TestRunReportFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.deps.Reports = &fakeReports{err: errors.New("together down")}
	if _, err := f.run(t); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a, _ := f.artefacts.GetBySession(dbctx.Context{Ctx: context.Background()}, "exec-1")
	if a.Report == nil || *a.Report != ReportFailedText {
		t.Fatalf("report: want=%q got=%v", ReportFailedText, a.Report)
	}
}

func TestRunWithoutReportGenerator(t *testing.T) {
	f := newFixture(t)
	f.deps.Reports = nil
	res, err := f.run(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Message != MessageVideoOnly {
		t.Fatalf("message: got=%q", res.Message)
	}
	a, _ := f.artefacts.GetBySession(dbctx.Context{Ctx: context.Background()}, "exec-1")
	if a.Report != nil {
		t.Fatalf("report must be nil, got=%q", *a.Report)
	}
}

func TestRunInsightsFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.deps.Insights = &fakeInsights{err: apierr.Wrap(apierr.ErrConfig, "CODERABBIT_API_KEY not configured")}
	_, err := f.run(t)
	if !errors.Is(err, apierr.ErrConfig) {
		t.Fatalf("want ErrConfig got=%v", err)
	}
	if f.veo.calls+f.pika.calls != 0 {
		t.Fatalf("no provider may run after an insights failure")
	}
	if n, _ := f.artefacts.Count(dbctx.Context{Ctx: context.Background()}); n != 0 {
		t.Fatalf("artefacts: want=0 got=%d", n)
	}
}

func TestRunPromptFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.deps.Prompts = &fakePrompts{err: apierr.Wrap(apierr.ErrConfig, "LLM client not available")}
	if _, err := f.run(t); !errors.Is(err, apierr.ErrConfig) {
		t.Fatalf("want ErrConfig got=%v", err)
	}
}

func TestRunTerminalProviderFailureAborts(t *testing.T) {
	f := newFixture(t)
	f.pika.out = nil
	f.pika.err = apierr.Wrap(apierr.ErrTimeout, "pika job not finished")
	if _, err := f.run(t); !errors.Is(err, apierr.ErrTimeout) {
		t.Fatalf("want ErrTimeout got=%v", err)
	}
	if n, _ := f.artefacts.Count(dbctx.Context{Ctx: context.Background()}); n != 0 {
		t.Fatalf("artefacts: want=0 got=%d", n)
	}
}

func TestRunRateLimitedPrimaryFallsBack(t *testing.T) {
	f := newFixture(t)
	f.veo.err = fmt.Errorf("veo generation failed: %w", apierr.Wrap(apierr.ErrRateLimited, "429"))
	res, err := f.run(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Provider != "pika" {
		t.Fatalf("provider: want=pika got=%q", res.Provider)
	}
	if f.veo.calls != 1 || f.pika.calls != 1 {
		t.Fatalf("provider calls: veo=%d pika=%d", f.veo.calls, f.pika.calls)
	}
}

func TestRunRateLimitedFallbackAborts(t *testing.T) {
	f := newFixture(t)
	f.pika.out = nil
	f.pika.err = apierr.Wrap(apierr.ErrRateLimited, "pika 429")
	if _, err := f.run(t); !errors.Is(err, apierr.ErrRateLimited) {
		t.Fatalf("want ErrRateLimited got=%v", err)
	}
	if n, _ := f.artefacts.Count(dbctx.Context{Ctx: context.Background()}); n != 0 {
		t.Fatalf("artefacts: want=0 got=%d", n)
	}
}

func TestRunOffloadsToObjectStore(t *testing.T) {
	f := newFixture(t)
	blobs := objectstore.NewMemory()
	f.deps.Blobs = blobs
	if _, err := f.run(t); err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := blobs.Get(context.Background(), StorageKey("exec-1"))
	if err != nil || string(b) != "....ftypmp42" {
		t.Fatalf("blob: got=%q err=%v", b, err)
	}
	a, _ := f.artefacts.GetBySession(dbctx.Context{Ctx: context.Background()}, "exec-1")
	if a.StorageKey != "artefacts/exec-1.mp4" || len(a.VideoBytes) != 0 || a.SizeBytes != int64(len(b)) {
		t.Fatalf("artefact: got=%+v", a)
	}
}

func TestRunDropsBlobWhenArtefactWriteFails(t *testing.T) {
	f := newFixture(t)
	blobs := objectstore.NewMemory()
	f.deps.Blobs = blobs
	f.deps.Artefacts = &failingArtefacts{ArtefactRepo: f.artefacts, err: errors.New("db down")}
	if _, err := f.run(t); err == nil {
		t.Fatalf("Run: want error")
	}
	if _, err := blobs.Get(context.Background(), StorageKey("exec-1")); err == nil {
		t.Fatalf("blob must be removed after a failed artefact write")
	}
}

func TestRunKeepsBlobOfEarlierArtefact(t *testing.T) {
	f := newFixture(t)
	blobs := objectstore.NewMemory()
	f.deps.Blobs = blobs
	if _, err := f.run(t); err != nil {
		t.Fatalf("Run: %v", err)
	}
	f.deps.Artefacts = &failingArtefacts{ArtefactRepo: f.artefacts, err: errors.New("db down")}
	if _, err := f.run(t); err == nil {
		t.Fatalf("Run(again): want error")
	}
	if _, err := blobs.Get(context.Background(), StorageKey("exec-1")); err != nil {
		t.Fatalf("blob referenced by the earlier artefact must survive: %v", err)
	}
}

func TestRunUnencodableInsightsStillPersists(t *testing.T) {
	f := newFixture(t)
	core, logs := observer.New(zap.WarnLevel)
	f.deps.Log = &logger.Logger{SugaredLogger: zap.New(core).Sugar()}
	f.deps.Insights = &fakeInsights{out: coderabbit.Insights{"repo": "acme/api", "stream": make(chan int)}}
	if _, err := f.run(t); err != nil {
		t.Fatalf("Run: %v", err)
	}
	a, err := f.artefacts.GetBySession(dbctx.Context{Ctx: context.Background()}, "exec-1")
	if err != nil {
		t.Fatalf("GetBySession: %v", err)
	}
	if len(a.Insights) != 0 {
		t.Fatalf("insights: want empty got=%s", a.Insights)
	}
	if n := logs.FilterMessage("Insights snapshot skipped").Len(); n != 1 {
		t.Fatalf("warn entries: want=1 got=%d", n)
	}
}

func TestRunTwiceKeepsOneArtefact(t *testing.T) {
	f := newFixture(t)
	first, err := f.run(t)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := f.run(t)
	if err != nil {
		t.Fatalf("Run(again): %v", err)
	}
	if first.ArtefactID != second.ArtefactID {
		t.Fatalf("artefact id changed: %s vs %s", first.ArtefactID, second.ArtefactID)
	}
	if n, _ := f.artefacts.Count(dbctx.Context{Ctx: context.Background()}); n != 1 {
		t.Fatalf("artefacts: want=1 got=%d", n)
	}
}

func TestRunValidatesInput(t *testing.T) {
	p, err := New(newFixture(t).deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Run(context.Background(), Input{ExecutionID: "x"}); !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument got=%v", err)
	}
}

func TestRunCompletionMapsResult(t *testing.T) {
	f := newFixture(t)
	p, err := New(f.deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	out, err := p.RunCompletion(context.Background(), services.CompletionJob{ExecutionID: "exec-2", RepoURL: "https://github.com/acme/api"})
	if err != nil {
		t.Fatalf("RunCompletion: %v", err)
	}
	if out.Provider != "pika" || out.ArtefactID == "" || out.Message != MessageWithReport {
		t.Fatalf("outcome: got=%+v", out)
	}
}
