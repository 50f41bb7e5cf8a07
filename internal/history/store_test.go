package history_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"sevenstream/internal/history"
	"sevenstream/internal/session"
	"sevenstream/internal/testsupport"
	"sevenstream/internal/transcript"
)

const listOutput = "Listing archive: a.7z\n\n--\nPath = a.7z\nType = 7z\n\n" +
	"------------------- ----- ------------ ------------  ------------------------\n" +
	"2018-01-01 10:00:00 ....A            5           16  a.txt\n" +
	"------------------- ----- ------------ ------------  ------------------------\n"

func finishedSession(t *testing.T, id, stdout, stderr string) (session.Record, *transcript.Transcript) {
	t.Helper()
	rec := transcript.NewRecorder(transcript.Header{SessionID: id, Binary: "7z", Args: []string{"l", "a.7z"}})
	s := session.New(id, nil)
	if stdout != "" {
		rec.Record(session.Stdout, []byte(stdout))
		s.OnStdout([]byte(stdout))
	}
	if stderr != "" {
		rec.Record(session.Stderr, []byte(stderr))
		s.OnStderr([]byte(stderr))
	}
	s.OnEnd()
	return s.Snapshot(), rec.Finish(nil)
}

func saveRun(t *testing.T, store *history.Store, id string, started time.Time, withTranscript bool) *history.Run {
	t.Helper()
	rec, tr := finishedSession(t, id, listOutput, "")
	run := history.NewRun(id, "7z", []string{"l", "a.7z"}, rec, started, started.Add(1500*time.Millisecond))
	run.EntryCount = 1
	var enc *transcript.Encoded
	if withTranscript {
		encoded, err := transcript.Encode(tr, transcript.CompressionZstd)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		enc = &encoded
	}
	if err := store.Save(context.Background(), run, enc); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return run
}

func TestSaveAndGetRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	started := time.Date(2026, 3, 1, 12, 0, 0, 250, time.UTC)

	saveRun(t, store, "4f2c1a9e-0000-4000-8000-000000000001", started, true)

	got, err := store.Get(context.Background(), "4f2c1a9e-0000-4000-8000-000000000001")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Outcome != history.OutcomeOK || got.Stage != session.StageFooters || got.DataType != session.DataList {
		t.Fatalf("unexpected run: %#v", got)
	}
	if !got.StartedAt.Equal(started) || got.Duration() != 1500*time.Millisecond {
		t.Fatalf("timestamps not preserved: %s %s", got.StartedAt, got.Duration())
	}
	if len(got.Info) < 2 || got.Info[0].Key != "Listing archive" {
		t.Fatalf("info order not preserved: %v", got.Info)
	}
	if len(got.Args) != 2 || got.Args[0] != "l" {
		t.Fatalf("unexpected args: %v", got.Args)
	}
	if !got.HasTranscript || got.EntryCount != 1 {
		t.Fatalf("expected transcript flag and entry count, got %#v", got)
	}
}

func TestGetByPrefix(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	now := time.Now()
	saveRun(t, store, "abc-111", now, false)
	saveRun(t, store, "abc-222", now.Add(time.Second), false)

	got, err := store.Get(context.Background(), "abc-2")
	if err != nil || got.ID != "abc-222" {
		t.Fatalf("prefix lookup failed: %v %v", got, err)
	}
	if _, err := store.Get(context.Background(), "abc"); !errors.Is(err, history.ErrAmbiguousID) {
		t.Fatalf("expected ErrAmbiguousID, got %v", err)
	}
	if _, err := store.Get(context.Background(), "zzz"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	saveRun(t, store, "run-1", base, false)
	saveRun(t, store, "run-2", base.Add(time.Hour), false)
	saveRun(t, store, "run-3", base.Add(500*time.Millisecond), false)

	runs, err := store.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "run-2" || runs[1].ID != "run-3" {
		ids := make([]string, 0, len(runs))
		for _, run := range runs {
			ids = append(ids, run.ID)
		}
		t.Fatalf("unexpected order: %v", ids)
	}
	all, err := store.List(context.Background(), 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("expected all runs, got %d (%v)", len(all), err)
	}
}

func TestErrorRunsStoreSource(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	rec, _ := finishedSession(t, "err-1", "Creating archive: out.7z\n", "ERROR: disk full\n")
	run := history.NewRun("err-1", "7z", nil, rec, time.Now(), time.Now())
	if err := store.Save(context.Background(), run, nil); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Get(context.Background(), "err-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Outcome != history.OutcomeError || got.ErrorSource != "stderr" || got.ErrorMessage != "ERROR: disk full" {
		t.Fatalf("unexpected error fields: %#v", got)
	}
	if got.HasTranscript {
		t.Fatal("no transcript was stored")
	}
	if _, err := store.Transcript(context.Background(), "err-1"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing transcript, got %v", err)
	}
}

func TestTranscriptRoundTripAndReplay(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	saveRun(t, store, "replay-1", time.Now(), true)

	tr, err := store.Transcript(context.Background(), "replay-1")
	if err != nil {
		t.Fatalf("Transcript: %v", err)
	}
	var collector session.Collector
	s, err := transcript.Replay(tr, &collector)
	if err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if s.Stage() != session.StageFooters || s.DataType() != session.DataList {
		t.Fatalf("unexpected replayed session state: %s %s", s.Stage(), s.DataType())
	}
	if _, ok := collector.Last(session.EventData); !ok {
		t.Fatal("expected data events on replay")
	}
}

func TestPruneRemovesOldRunsAndTranscripts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	now := time.Now()
	saveRun(t, store, "old", now.Add(-48*time.Hour), true)
	saveRun(t, store, "new", now, true)

	removed, err := store.Prune(context.Background(), now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed run, got %d", removed)
	}
	if _, err := store.Get(context.Background(), "old"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("old run should be gone, got %v", err)
	}
	if _, err := store.Transcript(context.Background(), "old"); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("old transcript should cascade, got %v", err)
	}
	if _, err := store.Get(context.Background(), "new"); err != nil {
		t.Fatalf("new run should remain: %v", err)
	}
}

func TestSaveRejectsDuplicateID(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	saveRun(t, store, "dup", time.Now(), false)
	rec, _ := finishedSession(t, "dup", "", "")
	if err := store.Save(context.Background(), history.NewRun("dup", "7z", nil, rec, time.Now(), time.Now()), nil); err == nil {
		t.Fatal("expected duplicate id error")
	}
}

func TestOpenRejectsSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := history.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	store.Close()

	db, err := sql.Open("sqlite", cfg.HistoryPath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 999"); err != nil {
		t.Fatalf("update version: %v", err)
	}
	db.Close()

	if _, err := history.Open(cfg); !errors.Is(err, history.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}
