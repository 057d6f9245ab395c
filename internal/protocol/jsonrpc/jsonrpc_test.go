package jsonrpc_test

import (
	"encoding/json"
	"testing"
	"time"

	"walletconnect/internal/protocol/jsonrpc"
)

func TestIDEmbedsTimestamp(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_123)
	id := jsonrpc.IDAt(at)
	if got := jsonrpc.Timestamp(id); got != at.UnixMilli() {
		t.Fatalf("want timestamp %d, got %d", at.UnixMilli(), got)
	}
	if id%1000 < 0 || id%1000 > 999 {
		t.Fatalf("random suffix out of range: %d", id%1000)
	}
}

func TestParse_RequestAndResponses(t *testing.T) {
	req, err := jsonrpc.NewRequest("wc_pairingPing", map[string]any{})
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	b, _ := json.Marshal(req)
	gotReq, gotResp, err := jsonrpc.Parse(b)
	if err != nil || gotReq == nil || gotResp != nil {
		t.Fatalf("parse request: req=%v resp=%v err=%v", gotReq, gotResp, err)
	}
	if gotReq.ID != req.ID || gotReq.Method != req.Method {
		t.Fatalf("request mismatch: %+v", gotReq)
	}
	if gotReq.Params.Kind() != jsonrpc.KindObject {
		t.Fatalf("want object params, got %s", gotReq.Params.Kind())
	}

	ok, _ := jsonrpc.NewResult(req.ID, true)
	b, _ = json.Marshal(ok)
	_, resp, err := jsonrpc.Parse(b)
	if err != nil || resp == nil || resp.IsError() {
		t.Fatalf("parse result: resp=%v err=%v", resp, err)
	}
	if v, isBool := resp.Result.Bool(); !isBool || !v {
		t.Fatalf("want result true, got %s", resp.Result.Raw())
	}

	fail := jsonrpc.NewErrorResponse(req.ID, 3003, "Unauthorized update request")
	b, _ = json.Marshal(fail)
	_, resp, err = jsonrpc.Parse(b)
	if err != nil || resp == nil || !resp.IsError() || resp.Error.Code != 3003 {
		t.Fatalf("parse error response: resp=%v err=%v", resp, err)
	}
}

func TestParse_RejectsNonRPC(t *testing.T) {
	for _, in := range []string{`{}`, `{"jsonrpc":"1.0","id":1,"method":"x"}`, `{"jsonrpc":"2.0","id":1}`, `[1,2]`} {
		if _, _, err := jsonrpc.Parse([]byte(in)); err == nil {
			t.Fatalf("want error for %s", in)
		}
	}
}

func TestValue_PreservesStructure(t *testing.T) {
	in := `{"namespaces":{"eip155":{"accounts":["eip155:1:0xab"],"methods":["eth_sign"],"events":[]}},"n":1.50}`
	var v jsonrpc.Value
	if err := json.Unmarshal([]byte(in), &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var again jsonrpc.Value
	if err := json.Unmarshal(out, &again); err != nil {
		t.Fatalf("unmarshal again: %v", err)
	}
	if !v.Equal(again) {
		t.Fatalf("value changed: %s -> %s", in, out)
	}

	kinds := map[string]jsonrpc.Kind{
		`null`: jsonrpc.KindNull, `true`: jsonrpc.KindBool, `-3`: jsonrpc.KindNumber,
		`"s"`: jsonrpc.KindString, `[]`: jsonrpc.KindArray, `{}`: jsonrpc.KindObject,
	}
	for raw, want := range kinds {
		var k jsonrpc.Value
		if err := json.Unmarshal([]byte(raw), &k); err != nil {
			t.Fatalf("unmarshal %s: %v", raw, err)
		}
		if k.Kind() != want {
			t.Fatalf("%s: want %s, got %s", raw, want, k.Kind())
		}
	}
}
