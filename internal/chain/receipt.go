package chain

// Contract event names emitted by the launchpad contracts.
const (
	EventProviderDeployed = "ProviderDeployed"
	EventCurveDeployed    = "CurveDeployed"
	EventTokenCreated     = "TokenCreated"
)

// DecodeReceipt converts an application log into a typed receipt. Event
// payloads are decoded here at the boundary so the orchestration core never
// handles raw encoded bytes.
func DecodeReceipt(appLog *ApplicationLog) *Receipt {
	receipt := &Receipt{TxID: appLog.TxID}
	if len(appLog.Executions) == 0 {
		return receipt
	}

	exec := appLog.Executions[0]
	receipt.Success = exec.VMState == "HALT"
	receipt.GasConsumed = exec.GasConsumed
	if !receipt.Success {
		receipt.RevertReason = ParseRevertReason(exec.Exception)
	}

	for _, note := range exec.Notifications {
		addr, ok := firstHash160(note.State)
		if !ok {
			continue
		}
		switch note.EventName {
		case EventProviderDeployed:
			receipt.DeployedAddress = addr
		case EventCurveDeployed:
			receipt.CurveAddress = addr
		case EventTokenCreated:
			receipt.TokenAddress = addr
		}
	}

	return receipt
}

// firstHash160 extracts the first Hash160-shaped field from an event state
// item, which the launchpad contracts emit as the leading element.
func firstHash160(state StackItem) (string, bool) {
	items, err := ParseArray(state)
	if err != nil || len(items) == 0 {
		return "", false
	}
	addr, err := ParseHash160(items[0])
	if err != nil {
		return "", false
	}
	return addr, true
}

// ExplorerTxURL renders a block-explorer link for a transaction.
func ExplorerTxURL(baseURL, txID string) string {
	if baseURL == "" {
		return ""
	}
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return baseURL + "/tx/" + txID
}
