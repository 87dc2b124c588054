// Copyright 2025 Zintix Labs
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

package dto

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zintix-labs/samplab/corefmt"
)

func TestDecodeRunRequestGET(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/run?uid=u1&experiment=demo&eid=7&rounds=100&seed=42", nil)
	req, err := DecodeRunRequest(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.UID != "u1" || req.ExperimentName != "demo" || req.ExperimentId != 7 {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Rounds != 100 {
		t.Fatalf("unexpected rounds: %+v", req.Rounds)
	}
	if req.Seed == nil || *req.Seed != 42 {
		t.Fatalf("unexpected seed: %+v", req.Seed)
	}
	if req.StartState.HasPayload() {
		t.Fatalf("GET request should not carry start state")
	}
}

func TestDecodeRunRequestGETInvalidEID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/run?eid=abc", nil)
	if _, err := DecodeRunRequest(r); err == nil {
		t.Fatal("expected error for non-numeric eid")
	}
}

func TestDecodeRunRequestPOST(t *testing.T) {
	payload := map[string]any{
		"uid":        "u2",
		"experiment": "demo",
		"eid":        9,
		"rounds":     50,
	}
	data, _ := json.Marshal(payload)
	r := httptest.NewRequest(http.MethodPost, "/run", bytes.NewReader(data))
	req, err := DecodeRunRequest(r)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.ExperimentId != 9 || req.Rounds != 50 || req.UID != "u2" {
		t.Fatalf("unexpected request: %+v", req)
	}
	if req.Seed != nil {
		t.Fatalf("seed should be nil when absent: %+v", req.Seed)
	}
}

func TestDecodeRunRequestPOSTUnknownField(t *testing.T) {
	data := []byte(`{"eid":1,"rounds":10,"bogus":true}`)
	r := httptest.NewRequest(http.MethodPost, "/run", bytes.NewReader(data))
	if _, err := DecodeRunRequest(r); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestDecodeRunRequestMethodNotAllowed(t *testing.T) {
	r := httptest.NewRequest(http.MethodPut, "/run", nil)
	if _, err := DecodeRunRequest(r); err == nil {
		t.Fatal("expected error for PUT")
	}
}

func TestRunRequestSnapRoundTrip(t *testing.T) {
	raw := []byte{0x01, 0x02, 0xfe, 0xff, 0x00, 0x7f}
	req := &RunRequest{
		StartState: &StartState{StartCoreSnapB64U: corefmt.EncodeBase64URL(raw)},
	}
	snap, err := req.Snap()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(snap, raw) {
		t.Fatalf("snap mismatch: got %v want %v", snap, raw)
	}
}

func TestRunRequestSnapEmpty(t *testing.T) {
	req := &RunRequest{}
	snap, err := req.Snap()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap != nil {
		t.Fatalf("expected nil snap, got %v", snap)
	}
}

func TestRunRequestSnapInvalid(t *testing.T) {
	req := &RunRequest{
		StartState: &StartState{StartCoreSnapB64U: "!!not-base64url!!"},
	}
	if _, err := req.Snap(); err == nil {
		t.Fatal("expected decode error")
	}
}
