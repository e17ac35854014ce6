package chain

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"testing"
)

// hash160Item builds the ByteString stack item a node would return for the
// given 0x-prefixed big-endian address.
func hash160Item(t *testing.T, addr string) StackItem {
	t.Helper()
	b, err := hex.DecodeString(addr[2:])
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	le := make([]byte, len(b))
	for i, v := range b {
		le[len(b)-1-i] = v
	}
	raw, _ := json.Marshal(base64.StdEncoding.EncodeToString(le))
	return StackItem{Type: "ByteString", Value: raw}
}

func TestDecodeReceipt_Success(t *testing.T) {
	addr := "0x1234567890abcdef1234567890abcdef12345678"
	state, _ := json.Marshal([]StackItem{hash160Item(t, addr)})

	appLog := &ApplicationLog{
		TxID: "0xaaa",
		Executions: []Execution{{
			VMState:     "HALT",
			GasConsumed: "1002340",
			Notifications: []Notification{{
				Contract:  "0xfeed",
				EventName: EventProviderDeployed,
				State:     StackItem{Type: "Array", Value: state},
			}},
		}},
	}

	receipt := DecodeReceipt(appLog)
	if !receipt.Success {
		t.Fatalf("expected success receipt")
	}
	if receipt.TxID != "0xaaa" {
		t.Fatalf("unexpected tx id %q", receipt.TxID)
	}
	if receipt.DeployedAddress != addr {
		t.Fatalf("deployed address = %q, want %q", receipt.DeployedAddress, addr)
	}
	if receipt.RevertReason != "" {
		t.Fatalf("unexpected revert reason %q", receipt.RevertReason)
	}
}

func TestDecodeReceipt_Fault(t *testing.T) {
	appLog := &ApplicationLog{
		TxID: "0xbbb",
		Executions: []Execution{{
			VMState:   "FAULT",
			Exception: "An unhandled exception was thrown. curve: slippage exceeded",
		}},
	}

	receipt := DecodeReceipt(appLog)
	if receipt.Success {
		t.Fatalf("expected failed receipt")
	}
	if receipt.RevertReason != "curve: slippage exceeded" {
		t.Fatalf("unexpected reason %q", receipt.RevertReason)
	}
}

func TestParseRevertReason(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "execution reverted"},
		{"An unhandled exception was thrown. provider: not active", "provider: not active"},
		{"plain message", "plain message"},
	}
	for _, tt := range tests {
		if got := ParseRevertReason(tt.in); got != tt.want {
			t.Fatalf("ParseRevertReason(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExplorerTxURL(t *testing.T) {
	got := ExplorerTxURL("https://explorer.example.org/", "0xabc")
	if got != "https://explorer.example.org/tx/0xabc" {
		t.Fatalf("unexpected url %q", got)
	}
	if ExplorerTxURL("", "0xabc") != "" {
		t.Fatalf("expected empty url without base")
	}
}
