package main

import (
	"errors"
	"testing"

	"sevenstream/internal/session"
	"sevenstream/internal/testsupport"
)

const listCapture = `
7-Zip [64] 16.02 : Copyright (c) 1999-2016 Igor Pavlov : 2016-05-21

Listing archive: a.7z

--
Path = a.7z
Type = 7z
Method = LZMA2:12

   Date      Time    Attr         Size   Compressed  Name
------------------- ----- ------------ ------------  ------------------------
2018-01-01 10:00:00 ....A            5           16  a.txt
2018-01-01 10:00:00 ....A         2048               dir/b.txt
------------------- ----- ------------ ------------  ------------------------
2018-01-01 10:00:00               2053           16  2 files
`

const extractCapture = "Extracting archive: a.7z\n\n" +
	" 40% 1 - a.txt\b\b\b\b\b\b\b\b\b\b\b\b\b\b" +
	" 90% 2 - dir/b.txt\b\b\b\b\b\b\b\b\b\b\b\b\b\b\b\b\b\b" +
	"- a.txt\n- dir/b.txt\n\nEverything is Ok\n\nFiles: 2\nSize:       12\n"

func TestParseCommandRendersTables(t *testing.T) {
	env := setupCLITestEnv(t)
	capture := testsupport.WriteCapture(t, env.baseDir, "list.out", listCapture)

	out, _, err := runCLI(t, []string{"parse", "--stdout", capture}, env.configPath)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	requireContains(t, out, "Listing archive")
	requireContains(t, out, "LZMA2:12")
	requireContains(t, out, "dir/b.txt")
	requireContains(t, out, "2.0 KiB")
	requireContains(t, out, "2 entries")
	requireContains(t, out, "type list")
}

func TestParseCommandJSONLines(t *testing.T) {
	env := setupCLITestEnv(t)
	capture := testsupport.WriteCapture(t, env.baseDir, "x.out", extractCapture)

	out, progress, err := runCLI(t, []string{"parse", "--json", "--stdout", capture}, env.configPath)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if progress != "" {
		t.Fatalf("json mode must not write progress lines, got %q", progress)
	}
	events := decodeEvents(t, out)
	if len(events) == 0 || events[len(events)-1].Kind != session.EventEnd {
		t.Fatalf("expected end event last, got %+v", events)
	}
	var entries, progressEvents int
	for _, evt := range events {
		if evt.Session == "" || evt.Session != events[0].Session {
			t.Fatalf("session id missing or inconsistent: %+v", evt)
		}
		switch evt.Kind {
		case session.EventData:
			entries++
			if evt.Entry.Status != "extract" {
				t.Fatalf("unexpected entry: %+v", evt.Entry)
			}
		case session.EventProgress:
			progressEvents++
		}
	}
	if entries != 2 || progressEvents != 2 {
		t.Fatalf("expected 2 entries and 2 progress events, got %d and %d", entries, progressEvents)
	}
}

func TestParseCommandSamplesProgressWhenNotTerminal(t *testing.T) {
	env := setupCLITestEnv(t)
	capture := testsupport.WriteCapture(t, env.baseDir, "x.out", extractCapture)

	_, progress, err := runCLI(t, []string{"parse", "--stdout", capture}, env.configPath)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	requireContains(t, progress, " 40% a.txt")
	requireContains(t, progress, " 90% dir/b.txt")
}

func TestParseCommandReportsStderr(t *testing.T) {
	env := setupCLITestEnv(t)
	stdout := testsupport.WriteCapture(t, env.baseDir, "a.out", "Creating archive: out.7z\n")
	stderr := testsupport.WriteCapture(t, env.baseDir, "a.err", "ERROR: disk full\n")

	out, _, err := runCLI(t, []string{"parse", "--json", "--stdout", stdout, "--stderr", stderr, "--exit-code", "2"}, env.configPath)
	var record *session.ErrorRecord
	if !errors.As(err, &record) {
		t.Fatalf("expected ErrorRecord, got %v", err)
	}
	events := decodeEvents(t, out)
	last := events[len(events)-1]
	if last.Kind != session.EventError || last.Error == nil {
		t.Fatalf("expected error event last, got %+v", last)
	}
	if last.Error.Source != session.SourceStderr || last.Error.Message != "ERROR: disk full" || last.Error.Level != "ERROR" {
		t.Fatalf("stderr must win over the exit code: %+v", last.Error)
	}
}

func TestParseCommandExitCodeOnly(t *testing.T) {
	env := setupCLITestEnv(t)
	stdout := testsupport.WriteCapture(t, env.baseDir, "a.out", "Creating archive: out.7z\n")

	out, _, err := runCLI(t, []string{"parse", "--stdout", stdout, "--exit-code", "7"}, env.configPath)
	if err == nil {
		t.Fatal("expected failure for non-zero exit code")
	}
	requireContains(t, out, "Error (process)")
	requireContains(t, out, "command line error")
}

func TestParseCommandRejectsUnknownDataType(t *testing.T) {
	env := setupCLITestEnv(t)
	stdout := testsupport.WriteCapture(t, env.baseDir, "a.out", "")
	if _, _, err := runCLI(t, []string{"parse", "--stdout", stdout, "--data-type", "bogus"}, env.configPath); err == nil {
		t.Fatal("expected error for unknown data type")
	}
}
