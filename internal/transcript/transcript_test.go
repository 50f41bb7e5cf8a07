package transcript_test

import (
	"bytes"
	"errors"
	"os/exec"
	"testing"
	"time"

	"sevenstream/internal/session"
	"sevenstream/internal/transcript"
)

const addOutput = "Creating archive: out.7z\n\nItems to compress: 2\n\n+ a.txt\n+ b.txt\n\nFiles read from disk: 2\nArchive size: 180 bytes (1 KiB)\nEverything is Ok\n"

func fakeClock() func() time.Time {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	return func() time.Time {
		now := base.Add(time.Duration(tick) * time.Millisecond)
		tick++
		return now
	}
}

func record(t *testing.T, chunks []string, stderr string, processErr error) *transcript.Transcript {
	t.Helper()
	rec := transcript.NewRecorder(transcript.Header{
		SessionID: "run-1",
		Binary:    "7z",
		Args:      []string{"a", "out.7z", "a.txt", "b.txt"},
		Encoding:  "utf-8",
	}, transcript.WithClock(fakeClock()))
	for _, chunk := range chunks {
		rec.Record(session.Stdout, []byte(chunk))
	}
	if stderr != "" {
		rec.Record(session.Stderr, []byte(stderr))
	}
	return rec.Finish(processErr)
}

func TestRecorderCapturesFrames(t *testing.T) {
	tr := record(t, []string{"Creating archive: ", "out.7z\n"}, "", nil)
	if len(tr.Frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(tr.Frames))
	}
	if tr.Frames[0].Offset != int64(time.Millisecond) || tr.Frames[1].Offset != int64(2*time.Millisecond) {
		t.Fatalf("unexpected offsets: %d %d", tr.Frames[0].Offset, tr.Frames[1].Offset)
	}
	if tr.ExitCode != 0 || tr.Err() != nil {
		t.Fatalf("clean run should have exit 0, got %d (%v)", tr.ExitCode, tr.Err())
	}
	stdout, stderr := tr.Bytes()
	if stdout != len("Creating archive: out.7z\n") || stderr != 0 {
		t.Fatalf("unexpected byte counts: %d %d", stdout, stderr)
	}
}

func TestRecorderCopiesChunks(t *testing.T) {
	rec := transcript.NewRecorder(transcript.Header{SessionID: "copy"})
	buf := []byte("+ a.txt\n")
	rec.Record(session.Stdout, buf)
	buf[0] = 'X'
	tr := rec.Finish(nil)
	if string(tr.Frames[0].Data) != "+ a.txt\n" {
		t.Fatalf("recorder must copy chunk data, got %q", tr.Frames[0].Data)
	}
}

func TestFinishRecordsExitCode(t *testing.T) {
	err := exec.Command("sh", "-c", "exit 2").Run()
	if err == nil {
		t.Fatal("expected exit error")
	}
	tr := record(t, nil, "", err)
	if !tr.Failed || tr.ExitCode != 2 {
		t.Fatalf("expected exit code 2, got %d (failed=%v)", tr.ExitCode, tr.Failed)
	}
	if tr.Err() == nil {
		t.Fatal("expected replayed error")
	}
	tr = record(t, nil, "", errors.New("exec: \"7z\": executable file not found in $PATH"))
	if tr.ExitCode != -1 {
		t.Fatalf("start failure should have unknown exit code, got %d", tr.ExitCode)
	}
}

func TestEncodeDecodeAllCompressions(t *testing.T) {
	tr := record(t, []string{addOutput, addOutput, addOutput}, "", nil)
	for _, compression := range []transcript.Compression{transcript.CompressionNone, transcript.CompressionLZ4, transcript.CompressionZstd} {
		t.Run(compression.String(), func(t *testing.T) {
			enc, err := transcript.Encode(tr, compression)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			if enc.Compression != compression {
				t.Fatalf("expected %s to be applied, got %s", compression, enc.Compression)
			}
			if compression != transcript.CompressionNone && len(enc.Payload) >= enc.RawSize {
				t.Fatalf("expected compressed payload smaller than %d, got %d", enc.RawSize, len(enc.Payload))
			}
			decoded, err := transcript.Decode(enc)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if decoded.SessionID != tr.SessionID || len(decoded.Frames) != len(tr.Frames) {
				t.Fatalf("decoded transcript differs: %#v", decoded)
			}
			for i := range tr.Frames {
				if !bytes.Equal(decoded.Frames[i].Data, tr.Frames[i].Data) || decoded.Frames[i].Stream != tr.Frames[i].Stream {
					t.Fatalf("frame %d differs", i)
				}
			}
		})
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	tr := record(t, []string{addOutput}, "", nil)
	a, err := transcript.Encode(tr, transcript.CompressionNone)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	b, err := transcript.Encode(tr, transcript.CompressionNone)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if a.Digest != b.Digest || !bytes.Equal(a.Payload, b.Payload) {
		t.Fatal("encoding the same transcript twice should produce identical bytes")
	}
}

func TestIncompressibleFallsBackToNone(t *testing.T) {
	tr := transcript.NewRecorder(transcript.Header{SessionID: "x"}).Finish(nil)
	enc, err := transcript.Encode(tr, transcript.CompressionZstd)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if enc.Compression != transcript.CompressionNone {
		t.Fatalf("tiny payload should be stored uncompressed, got %s", enc.Compression)
	}
}

func TestDecodeDetectsTampering(t *testing.T) {
	tr := record(t, []string{addOutput}, "", nil)
	enc, err := transcript.Encode(tr, transcript.CompressionNone)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	enc.Payload = append([]byte(nil), enc.Payload...)
	enc.Payload[len(enc.Payload)-1] ^= 0xff
	if _, err := transcript.Decode(enc); !errors.Is(err, transcript.ErrDigestMismatch) {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
}

func TestParseCompression(t *testing.T) {
	for _, name := range []string{"none", "lz4", "zstd"} {
		c, err := transcript.ParseCompression(name)
		if err != nil || c.String() != name {
			t.Fatalf("ParseCompression(%q) = %v, %v", name, c, err)
		}
	}
	if _, err := transcript.ParseCompression("gzip"); err == nil {
		t.Fatal("expected error for gzip")
	}
}

func TestReplayReproducesLiveEvents(t *testing.T) {
	chunks := []string{"Creating archive: out.7z\n\n+ a", ".txt\n", "Everything is Ok\n"}

	var live session.Collector
	s := session.New("run-1", &live)
	for _, chunk := range chunks {
		s.OnStdout([]byte(chunk))
	}
	s.OnEnd()

	tr := record(t, chunks, "", nil)
	var replayed session.Collector
	if _, err := transcript.Replay(tr, &replayed); err != nil {
		t.Fatalf("Replay: %v", err)
	}

	if len(live.Events) != len(replayed.Events) {
		t.Fatalf("event counts differ: live %v, replay %v", live.Kinds(), replayed.Kinds())
	}
	for i := range live.Events {
		if live.Events[i].Kind != replayed.Events[i].Kind || live.Events[i].Key != replayed.Events[i].Key {
			t.Fatalf("event %d differs: %#v vs %#v", i, live.Events[i], replayed.Events[i])
		}
	}
}

func TestReplayReproducesFailures(t *testing.T) {
	err := exec.Command("sh", "-c", "exit 2").Run()
	tr := record(t, []string{"Creating archive: out.7z\n"}, "ERROR: disk full\n", err)

	var collector session.Collector
	s, rerr := transcript.Replay(tr, &collector)
	if rerr != nil {
		t.Fatalf("Replay: %v", rerr)
	}
	last := collector.Events[len(collector.Events)-1]
	if last.Kind != session.EventError {
		t.Fatalf("expected error terminal event, got %s", last.Kind)
	}
	if last.Err.Source != session.SourceStderr || last.Err.Message != "ERROR: disk full" {
		t.Fatalf("stderr error should win, got %#v", last.Err)
	}
	if s.Err() == nil {
		t.Fatal("session should report the error")
	}
}

func TestReplayProcessExitCode(t *testing.T) {
	tr := &transcript.Transcript{Version: transcript.FormatVersion, SessionID: "p", Failed: true, ProcessError: "exit status 7", ExitCode: 7}
	var collector session.Collector
	if _, err := transcript.Replay(tr, &collector); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	evt, ok := collector.Last(session.EventError)
	if !ok || evt.Err.ExitCode != session.ExitCommandLine {
		t.Fatalf("expected exit code 7 record, got %#v", evt)
	}
}

func TestReplayRejectsUnknownVersion(t *testing.T) {
	if _, err := transcript.Replay(&transcript.Transcript{Version: 99}, nil); err == nil {
		t.Fatal("expected version error")
	}
}
