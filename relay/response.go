package relay

import "encoding/json"

// ResponseKind discriminates the normalized relay response.
type ResponseKind int

const (
	// ResponseImmediate means the relay returned a transaction hash directly.
	ResponseImmediate ResponseKind = iota
	// ResponseQueued means the relay returned an identifier to poll.
	ResponseQueued
	// ResponseUnrecognized means no known shape matched; Raw carries the
	// payload for diagnostics.
	ResponseUnrecognized
)

// Response is the normalized form of the relay's contract-write reply. The
// relay does not commit to a fixed shape, so all downstream logic switches
// on Kind rather than probing fields.
type Response struct {
	Kind            ResponseKind
	TransactionHash string
	QueueID         string
	Raw             json.RawMessage
}

// writeResponse covers every reply shape the relay is known to produce.
type writeResponse struct {
	Transactions []struct {
		ID string `json:"id"`
	} `json:"transactions"`
	TransactionHash string `json:"transactionHash"`
	QueueID         string `json:"queueId"`
	Result          *struct {
		TransactionHash string   `json:"transactionHash"`
		TransactionIDs  []string `json:"transactionIds"`
		QueueID         string   `json:"queueId"`
	} `json:"result"`
}

// normalizeResponse maps a raw relay reply onto the Response sum type,
// probing known shapes in precedence order: transactions[].id, root
// transactionHash, root queueId, then the result wrapper's transactionHash,
// transactionIds[] and queueId.
func normalizeResponse(raw []byte) Response {
	var r writeResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return Response{Kind: ResponseUnrecognized, Raw: raw}
	}

	if len(r.Transactions) > 0 && r.Transactions[0].ID != "" {
		return Response{Kind: ResponseQueued, QueueID: r.Transactions[0].ID, Raw: raw}
	}
	if r.TransactionHash != "" {
		return Response{Kind: ResponseImmediate, TransactionHash: r.TransactionHash, Raw: raw}
	}
	if r.QueueID != "" {
		return Response{Kind: ResponseQueued, QueueID: r.QueueID, Raw: raw}
	}
	if r.Result != nil {
		if r.Result.TransactionHash != "" {
			return Response{Kind: ResponseImmediate, TransactionHash: r.Result.TransactionHash, Raw: raw}
		}
		if len(r.Result.TransactionIDs) > 0 && r.Result.TransactionIDs[0] != "" {
			return Response{Kind: ResponseQueued, QueueID: r.Result.TransactionIDs[0], Raw: raw}
		}
		if r.Result.QueueID != "" {
			return Response{Kind: ResponseQueued, QueueID: r.Result.QueueID, Raw: raw}
		}
	}

	return Response{Kind: ResponseUnrecognized, Raw: raw}
}
