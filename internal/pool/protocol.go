// Package pool implements the mining-pool protocol client: a persistent
// WebSocket session that decodes inbound jobs, submits shares, and keeps the
// connection alive.
package pool

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/bardlex/gomc/internal/algo"
	"github.com/bardlex/gomc/internal/mining"
	"github.com/bardlex/gomc/pkg/errors"
)

// Request IDs used by the client. The protocol correlates responses by ID;
// the client sends each method with a fixed identifier.
const (
	loginRequestID     = 1
	subscribeRequestID = 2
	submitRequestID    = 3
)

// Message represents a protocol message in either direction
type Message struct {
	ID     *int            `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Error represents a protocol error response
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Request is an outbound client message
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// LoginParams are the parameters of the login request
type LoginParams struct {
	Login string `json:"login"`
	Pass  string `json:"pass"`
	Agent string `json:"agent"`
}

// SubscribeParams are the parameters of the subscribe request
type SubscribeParams struct {
	WorkerID string `json:"worker_id"`
}

// SubmitParams are the parameters of a share submission
type SubmitParams struct {
	ID     string `json:"id"`
	JobID  string `json:"job_id"`
	Nonce  string `json:"nonce"`
	Result string `json:"result"`
}

// JobParams are the parameters of an inbound job notification
type JobParams struct {
	JobID  string `json:"job_id"`
	Blob   string `json:"blob"`
	Target string `json:"target"`
	Algo   string `json:"algo"`
}

// ParseMessage parses a protocol message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeProtocol, "parse_message",
			"failed to parse JSON message")
	}
	return &msg, nil
}

// IsResponse returns true if the message answers a client request
func (m *Message) IsResponse() bool {
	return m.Method == "" && m.ID != nil
}

// DecodeJob decodes the params of a "job" notification into a mining job.
// Missing fields are protocol errors; malformed hex is an input error.
func DecodeJob(params json.RawMessage) (mining.Job, error) {
	var raw JobParams
	if err := json.Unmarshal(params, &raw); err != nil {
		return mining.Job{}, errors.Wrap(err, errors.ErrorTypeProtocol, "decode_job",
			"malformed job params")
	}

	if raw.JobID == "" {
		return mining.Job{}, errors.New(errors.ErrorTypeProtocol, "decode_job", "missing job_id")
	}
	if raw.Blob == "" {
		return mining.Job{}, errors.New(errors.ErrorTypeProtocol, "decode_job", "missing blob")
	}
	if raw.Target == "" {
		return mining.Job{}, errors.New(errors.ErrorTypeProtocol, "decode_job", "missing target")
	}
	if raw.Algo == "" {
		return mining.Job{}, errors.New(errors.ErrorTypeProtocol, "decode_job", "missing algo")
	}

	blob, err := hex.DecodeString(raw.Blob)
	if err != nil {
		return mining.Job{}, errors.Wrap(err, errors.ErrorTypeInput, "decode_job",
			"invalid blob hex").WithContext("blob", raw.Blob)
	}

	target, err := hex.DecodeString(raw.Target)
	if err != nil {
		return mining.Job{}, errors.Wrap(err, errors.ErrorTypeInput, "decode_job",
			"invalid target hex").WithContext("target", raw.Target)
	}

	kind, err := algo.ParseKind(raw.Algo)
	if err != nil {
		return mining.Job{}, errors.Wrap(err, errors.ErrorTypeProtocol, "decode_job",
			"unknown algorithm tag").WithContext("algo", raw.Algo)
	}

	return mining.Job{
		ID:        raw.JobID,
		Blob:      blob,
		Target:    target,
		Algorithm: kind,
	}, nil
}

// EncodeNonce renders a nonce as exactly 8 lowercase, zero-padded hex
// characters. The wire format carries the low 32 bits.
func EncodeNonce(nonce uint64) string {
	return fmt.Sprintf("%08x", uint32(nonce))
}

// EncodeSubmit builds the submit request for a share
func EncodeSubmit(workerID string, share mining.Share) Request {
	return Request{
		Method: "submit",
		Params: SubmitParams{
			ID:     workerID,
			JobID:  share.JobID,
			Nonce:  EncodeNonce(share.Nonce),
			Result: hex.EncodeToString(share.Result[:]),
		},
		ID: submitRequestID,
	}
}

// EncodeLogin builds the login request
func EncodeLogin(user, password, agent string) Request {
	return Request{
		Method: "login",
		Params: LoginParams{
			Login: user,
			Pass:  password,
			Agent: agent,
		},
		ID: loginRequestID,
	}
}

// EncodeSubscribe builds the subscribe request
func EncodeSubscribe(workerID string) Request {
	return Request{
		Method: "subscribe",
		Params: SubscribeParams{
			WorkerID: workerID,
		},
		ID: subscribeRequestID,
	}
}

// EncodeKeepalive builds the keepalive message
func EncodeKeepalive() Request {
	return Request{Method: "keepalived"}
}
