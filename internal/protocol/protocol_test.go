package protocol

import (
	"encoding/json"
	"testing"
	"time"

	"termscribe/internal/tracker"
)

func TestDecodeClientVariants(t *testing.T) {
	msg, err := DecodeClient([]byte(`{"type":"input","data":"ls\n"}`))
	if err != nil {
		t.Fatalf("decode input: %v", err)
	}
	if msg.Type != TypeInput || msg.Data != "ls\n" {
		t.Errorf("input = %+v", msg)
	}

	msg, err = DecodeClient([]byte(`{"type":"run","data":"make","id":"req-7"}`))
	if err != nil {
		t.Fatalf("decode run: %v", err)
	}
	if msg.Type != TypeRun || msg.Data != "make" || msg.ID != "req-7" {
		t.Errorf("run = %+v", msg)
	}

	msg, err = DecodeClient([]byte(`{"type":"resize","cols":120,"rows":40}`))
	if err != nil {
		t.Fatalf("decode resize: %v", err)
	}
	if msg.Cols != 120 || msg.Rows != 40 {
		t.Errorf("resize = %+v", msg)
	}
}

func TestDecodeClientRejectsUnknown(t *testing.T) {
	if _, err := DecodeClient([]byte(`{"type":"shutdown"}`)); err == nil {
		t.Error("unknown type accepted")
	}
	if _, err := DecodeClient([]byte(`not json`)); err == nil {
		t.Error("malformed JSON accepted")
	}
}

func TestEncodeEvent(t *testing.T) {
	data, ok := EncodeEvent(tracker.Start{User: "alice", Host: "box", Cwd: "/tmp"})
	if !ok {
		t.Fatal("start event not encoded")
	}
	var start map[string]any
	if err := json.Unmarshal(data, &start); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if start["type"] != "logStart" || start["cwd"] != "/tmp" {
		t.Errorf("start frame = %v", start)
	}

	data, ok = EncodeEvent(tracker.Output{Data: "file1\n"})
	if !ok {
		t.Fatal("output event not encoded")
	}
	var out map[string]any
	json.Unmarshal(data, &out)
	if out["type"] != "logOutput" || out["data"] != "file1\n" {
		t.Errorf("output frame = %v", out)
	}

	data, ok = EncodeEvent(tracker.End{ExitCode: 137, Duration: time.Second})
	if !ok {
		t.Fatal("end event not encoded")
	}
	var end map[string]any
	json.Unmarshal(data, &end)
	if end["type"] != "logEnd" || end["exitCode"] != float64(137) {
		t.Errorf("end frame = %v", end)
	}
}

func TestPwdEventHasNoWireForm(t *testing.T) {
	if _, ok := EncodeEvent(tracker.Pwd{Path: "/tmp"}); ok {
		t.Error("pwd event should not encode")
	}
}
