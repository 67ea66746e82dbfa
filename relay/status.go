package relay

import (
	"encoding/json"
	"strings"
)

// transactionStatus covers the known shapes of the status endpoint reply.
// Like the write response, the shape is not fixed; hash and error detail can
// surface under several field names.
type transactionStatus struct {
	TransactionHash string           `json:"transactionHash"`
	Hash            string           `json:"hash"`
	OnChainTxHash   string           `json:"onChainTxHash"`
	Status          string           `json:"status"`
	ErrorMessage    string           `json:"errorMessage"`
	Error           json.RawMessage  `json:"error"`
	RevertReason    string           `json:"revertReason"`
	ExecutionResult *executionResult `json:"executionResult"`
}

type executionResult struct {
	Status string          `json:"status"`
	Error  *executionError `json:"error"`
}

type executionError struct {
	Code       string      `json:"code"`
	Message    string      `json:"message"`
	InnerError *innerError `json:"innerError"`
}

// innerError is the nested bundler/billing error body some relay backends
// wrap around the real failure.
type innerError struct {
	Kind    string `json:"kind"`
	Body    string `json:"body"`
	Message string `json:"message"`
}

var (
	failureStatuses = map[string]bool{"failed": true, "errored": true, "error": true}
	successStatuses = map[string]bool{"confirmed": true, "mined": true, "success": true}
)

func (t *transactionStatus) failed() bool {
	if failureStatuses[strings.ToLower(t.Status)] {
		return true
	}
	return t.ExecutionResult != nil && failureStatuses[strings.ToLower(t.ExecutionResult.Status)]
}

func (t *transactionStatus) succeeded() bool {
	if successStatuses[strings.ToLower(t.Status)] {
		return true
	}
	return t.ExecutionResult != nil && successStatuses[strings.ToLower(t.ExecutionResult.Status)]
}

// hash returns the on-chain transaction hash if the response carries one.
// The primary field counts regardless of status; the alternate fields only
// count once a terminal success status is reported.
func (t *transactionStatus) hash() string {
	if t.TransactionHash != "" {
		return t.TransactionHash
	}
	if t.succeeded() {
		if t.Hash != "" {
			return t.Hash
		}
		if t.OnChainTxHash != "" {
			return t.OnChainTxHash
		}
	}
	return ""
}

// errorMessage extracts a human-readable failure reason, probing the known
// locations in precedence order: the inner bundler/billing error body, the
// execution-result error code, the top-level error fields, then the revert
// reason. First non-empty wins.
func (t *transactionStatus) errorMessage() string {
	if t.ExecutionResult != nil && t.ExecutionResult.Error != nil {
		execErr := t.ExecutionResult.Error
		if execErr.InnerError != nil {
			if execErr.InnerError.Body != "" {
				return execErr.InnerError.Body
			}
			if execErr.InnerError.Message != "" {
				return execErr.InnerError.Message
			}
		}
		if execErr.Code != "" {
			return execErr.Code
		}
		if execErr.Message != "" {
			return execErr.Message
		}
	}

	if t.ErrorMessage != "" {
		return t.ErrorMessage
	}
	if msg := topLevelError(t.Error); msg != "" {
		return msg
	}
	if t.RevertReason != "" {
		return t.RevertReason
	}
	return "Unknown error"
}

// topLevelError handles the error field being either a bare string or an
// object with a message.
func topLevelError(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Message
	}
	return ""
}
