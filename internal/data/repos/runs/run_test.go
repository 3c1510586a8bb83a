package runs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yungbote/autopilot-backend/internal/data/repos/testutil"
	types "github.com/yungbote/autopilot-backend/internal/domain"
	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/dbctx"
)

func TestRunRepoMarkCompletedUpserts(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	now := time.Now().UTC()
	if err := repo.MarkCompleted(dbc, "exec-1", "https://github.com/acme/api", "dev@acme.io", now); err != nil {
		t.Fatalf("MarkCompleted(new): %v", err)
	}
	got, err := repo.Get(dbc, "exec-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != types.RunStatusCompleted || got.Repo != "https://github.com/acme/api" || got.UserEmail != "dev@acme.io" {
		t.Fatalf("run: got=%+v", got)
	}

	// Empty repo/email keep the stored values.
	if err := repo.MarkCompleted(dbc, "exec-1", "", "", now.Add(time.Minute)); err != nil {
		t.Fatalf("MarkCompleted(existing): %v", err)
	}
	got, _ = repo.Get(dbc, "exec-1")
	if got.Repo != "https://github.com/acme/api" || got.UserEmail != "dev@acme.io" {
		t.Fatalf("fields overwritten: got=%+v", got)
	}
}

func TestRunRepoMarkCompletedKeepsVideoReady(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	if err := repo.Create(dbc, &types.Run{ID: "exec-2", Status: types.RunStatusVideoReady}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := repo.MarkCompleted(dbc, "exec-2", "r", "e", time.Now()); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	got, _ := repo.Get(dbc, "exec-2")
	if got.Status != types.RunStatusVideoReady {
		t.Fatalf("status: want=%s got=%s", types.RunStatusVideoReady, got.Status)
	}
}

func TestRunRepoClaimAndFinish(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	if err := repo.MarkCompleted(dbc, "exec-3", "r", "e", time.Now()); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}

	token, ok, err := repo.ClaimOrchestration(dbc, "exec-3", time.Hour)
	if err != nil || !ok || token == "" {
		t.Fatalf("first claim: token=%q ok=%v err=%v", token, ok, err)
	}
	if _, ok, err := repo.ClaimOrchestration(dbc, "exec-3", time.Hour); err != nil || ok {
		t.Fatalf("second claim must fail: ok=%v err=%v", ok, err)
	}

	applied, err := repo.FinishOrchestration(dbc, "exec-3", "not-the-token", Outcome{Status: types.RunStatusVideoFailed})
	if err != nil || applied {
		t.Fatalf("stale finish: applied=%v err=%v", applied, err)
	}

	applied, err = repo.FinishOrchestration(dbc, "exec-3", token, Outcome{
		Status:            types.RunStatusVideoReady,
		CompletionMessage: "done",
		ArtefactID:        "a-1",
	})
	if err != nil || !applied {
		t.Fatalf("finish: applied=%v err=%v", applied, err)
	}
	got, _ := repo.Get(dbc, "exec-3")
	if got.Status != types.RunStatusVideoReady || got.ArtefactID != "a-1" || got.CompletionMessage != "done" {
		t.Fatalf("run: got=%+v", got)
	}
	if got.OrchestrationToken != "" {
		t.Fatalf("token must be released, got=%q", got.OrchestrationToken)
	}

	// A VIDEO_READY run is not claimable again.
	if _, ok, _ := repo.ClaimOrchestration(dbc, "exec-3", time.Hour); ok {
		t.Fatalf("claim after VIDEO_READY must fail")
	}
}

func TestRunRepoClaimTakesOverStaleToken(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	if err := repo.MarkCompleted(dbc, "exec-4", "r", "e", time.Now()); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	first, ok, err := repo.ClaimOrchestration(dbc, "exec-4", time.Hour)
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	old := time.Now().Add(-2 * time.Hour)
	if err := db.Model(&types.Run{}).Where("id = ?", "exec-4").Update("orchestration_started_at", old).Error; err != nil {
		t.Fatalf("age token: %v", err)
	}

	second, ok, err := repo.ClaimOrchestration(dbc, "exec-4", time.Hour)
	if err != nil || !ok || second == first {
		t.Fatalf("takeover: token=%q ok=%v err=%v", second, ok, err)
	}
	if applied, _ := repo.FinishOrchestration(dbc, "exec-4", first, Outcome{Status: types.RunStatusVideoFailed}); applied {
		t.Fatalf("superseded token must not write")
	}
}

func TestRunRepoReleaseKeepsStatus(t *testing.T) {
	db := testutil.DB(t)
	repo := NewRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background()}

	if err := repo.MarkCompleted(dbc, "exec-6", "r", "e", time.Now()); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	token, ok, err := repo.ClaimOrchestration(dbc, "exec-6", time.Hour)
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}

	if released, err := repo.ReleaseOrchestration(dbc, "exec-6", "other"); err != nil || released {
		t.Fatalf("release with wrong token: released=%v err=%v", released, err)
	}
	released, err := repo.ReleaseOrchestration(dbc, "exec-6", token)
	if err != nil || !released {
		t.Fatalf("release: released=%v err=%v", released, err)
	}
	got, _ := repo.Get(dbc, "exec-6")
	if got.Status != types.RunStatusCompleted || got.Error != "" || got.OrchestrationToken != "" {
		t.Fatalf("run: got=%+v", got)
	}
	if _, ok, _ := repo.ClaimOrchestration(dbc, "exec-6", time.Hour); !ok {
		t.Fatalf("run must be claimable after release")
	}
	if _, err := repo.ReleaseOrchestration(dbc, "exec-6", ""); err == nil {
		t.Fatalf("empty token must be rejected")
	}
}

func TestRunRepoFinishRequiresToken(t *testing.T) {
	repo := NewRunRepo(testutil.DB(t), testutil.Logger(t))
	_, err := repo.FinishOrchestration(dbctx.Context{Ctx: context.Background()}, "x", "", Outcome{})
	if !errors.Is(err, apierr.ErrInvalidArgument) {
		t.Fatalf("want ErrInvalidArgument got=%v", err)
	}
}

func TestRunRepoGetMissing(t *testing.T) {
	repo := NewRunRepo(testutil.DB(t), testutil.Logger(t))
	_, err := repo.Get(dbctx.Context{Ctx: context.Background()}, "nope")
	if !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("want ErrNotFound got=%v", err)
	}
}

func TestRunRepoListRecentAndCount(t *testing.T) {
	db := testutil.DB(t)
	tx := testutil.Tx(t, db)
	repo := NewRunRepo(db, testutil.Logger(t))
	dbc := dbctx.Context{Ctx: context.Background(), Tx: tx}

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"a", "b", "c"} {
		run := &types.Run{ID: id, Status: types.RunStatusRunning, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(dbc, run); err != nil {
			t.Fatalf("Create(%s): %v", id, err)
		}
	}

	list, err := repo.ListRecent(dbc, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("order: got=%v", ids(list))
	}

	n, err := repo.Count(dbc)
	if err != nil || n != 3 {
		t.Fatalf("Count: want=3 got=%d err=%v", n, err)
	}
	n, err = repo.CountSince(dbc, base.Add(90*time.Second))
	if err != nil || n != 1 {
		t.Fatalf("CountSince: want=1 got=%d err=%v", n, err)
	}
}

func ids(list []*types.Run) []string {
	out := make([]string, 0, len(list))
	for _, r := range list {
		out = append(out, r.ID)
	}
	return out
}
