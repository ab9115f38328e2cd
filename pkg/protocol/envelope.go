// Package protocol holds the request and response envelopes exchanged between
// the UI, the coordinator and the tab dispatchers.
package protocol

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/vpnda/statement-relay/pkg/bank"
	"github.com/vpnda/statement-relay/pkg/models"
)

type Action string

const (
	ActionGetBankID         Action = "getBankId"
	ActionGetBankName       Action = "getBankName"
	ActionGetSessionID      Action = "getSessionId"
	ActionGetProfile        Action = "getProfile"
	ActionGetAccounts       Action = "getAccounts"
	ActionGetStatements     Action = "getStatements"
	ActionDownloadStatement Action = "downloadStatement"
	ActionClearCache        Action = "clearCache"
	ActionRequestFetch      Action = "requestFetch"
	ActionPing              Action = "ping"
)

type Request struct {
	ID           string             `json:"id"`
	Action       Action             `json:"action"`
	ForceRefresh bool               `json:"forceRefresh,omitempty"`
	Account      *models.Account    `json:"account,omitempty"`
	Statement    *models.Statement  `json:"statement,omitempty"`
	URL          string             `json:"url,omitempty"`
	Options      *bank.FetchOptions `json:"options,omitempty"`
}

// NewRequest returns a request for action with a fresh id.
func NewRequest(action Action) *Request {
	return &Request{ID: uuid.NewString(), Action: action}
}

type Response struct {
	ID      string          `json:"id"`
	Action  Action          `json:"action"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Kind    bank.ErrorKind  `json:"kind,omitempty"`
}

// Succeed wraps data in a success envelope answering req.
func Succeed(req *Request, data any) *Response {
	res := &Response{ID: req.ID, Action: req.Action, Success: true}
	if data == nil {
		return res
	}
	b, err := json.Marshal(data)
	if err != nil {
		return Fail(req, fmt.Errorf("failed to encode %s result: %w", req.Action, err))
	}
	res.Data = b
	return res
}

// Fail wraps err in a failure envelope answering req.
func Fail(req *Request, err error) *Response {
	return &Response{
		ID:     req.ID,
		Action: req.Action,
		Error:  Message(err),
		Kind:   bank.KindOf(err),
	}
}

// Err rebuilds an error from a failure envelope so that errors.Is keeps working
// on the receiving side. It returns nil for success envelopes.
func (r *Response) Err() error {
	if r.Success {
		return nil
	}
	if sentinel := bank.Sentinel(r.Kind); sentinel != nil {
		return &remoteError{msg: r.Error, sentinel: sentinel}
	}
	return errors.New(r.Error)
}

// Decode unmarshals the success payload into v.
func (r *Response) Decode(v any) error {
	if err := r.Err(); err != nil {
		return err
	}
	if len(r.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode %s response: %w", r.Action, err)
	}
	return nil
}

type remoteError struct {
	msg      string
	sentinel error
}

func (e *remoteError) Error() string { return e.msg }
func (e *remoteError) Unwrap() error { return e.sentinel }

const notSupportedGuidance = "Download this statement from the bank website instead."

// Message renders err for humans. Unsupported operations get guidance text so the
// UI can show an explanation rather than a failure.
func Message(err error) string {
	msg := err.Error()
	switch bank.KindOf(err) {
	case bank.KindNotSupported:
		if strings.Contains(msg, notSupportedGuidance) {
			return msg
		}
		return fmt.Sprintf("%s. %s", msg, notSupportedGuidance)
	case bank.KindRouting:
		return fmt.Sprintf("%s: open a supported bank page and try again", bank.ErrUnsupportedBank)
	}
	return msg
}

// EncodeBinary is the transport encoding for binary payloads.
func EncodeBinary(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// DecodeBinary reverses EncodeBinary.
func DecodeBinary(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode binary payload: %w", err)
	}
	return b, nil
}
