// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package skipc

import (
	"encoding/json"
	"testing"
)

func TestRequest_RoundTrip(t *testing.T) {
	req := Request{
		Action:         ActionExec,
		Command:        "echo hi",
		Cwd:            "/tmp",
		TimeoutSeconds: 30,
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded Request
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if decoded != req {
		t.Errorf("round trip mismatch: got %+v, want %+v", decoded, req)
	}
}

func TestResponse_BlockedOmitsExecFields(t *testing.T) {
	resp := Response{
		ExitCode:    1,
		Blocked:     true,
		BlockReason: "Command 'env' is blocked for security",
		Stderr:      "BLOCKED: Command 'env' is blocked for security",
	}

	encoded, err := json.Marshal(resp)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var asMap map[string]any
	if err := json.Unmarshal(encoded, &asMap); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if _, present := asMap["secrets"]; present {
		t.Error("expected omitted secrets field")
	}
	if _, present := asMap["status"]; present {
		t.Error("expected omitted status field")
	}
}
