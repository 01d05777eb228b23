// Package protocol defines the JSON envelope exchanged with the game client
// over the WebSocket link.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the envelope version written in every outbound header.
const Version = 1

// Message purposes carried in header.messagePurpose.
const (
	PurposeCommandRequest  = "commandRequest"
	PurposeCommandResponse = "commandResponse"
	PurposeSubscribe       = "subscribe"
	PurposeEvent           = "event"
	PurposeError           = "error"
)

// ErrMalformed is returned by Decode for frames that are not envelopes.
var ErrMalformed = errors.New("malformed envelope")

// Header is the envelope header shared by every message.
type Header struct {
	Version        int    `json:"version"`
	RequestID      string `json:"requestId"`
	MessagePurpose string `json:"messagePurpose"`
	MessageType    string `json:"messageType,omitempty"`
	EventName      string `json:"eventName,omitempty"`
}

// Envelope is a single message in either direction. Body is kept raw so each
// consumer decodes only the shape it needs.
type Envelope struct {
	Header Header          `json:"header"`
	Body   json.RawMessage `json:"body"`
}

// CommandBody is the body of an outbound commandRequest.
type CommandBody struct {
	CommandLine string `json:"commandLine"`
	Version     int    `json:"version"`
}

// SubscribeBody is the body of an outbound subscribe request.
type SubscribeBody struct {
	EventName string `json:"eventName"`
}

// NewCommandRequest encodes a commandRequest envelope for commandLine.
//
// Precondition: requestID must be non-empty.
func NewCommandRequest(requestID, commandLine string) ([]byte, error) {
	return encode(Header{
		Version:        Version,
		RequestID:      requestID,
		MessagePurpose: PurposeCommandRequest,
		MessageType:    PurposeCommandRequest,
	}, CommandBody{CommandLine: commandLine, Version: Version})
}

// NewSubscribe encodes a subscribe envelope for eventName.
//
// Precondition: requestID and eventName must be non-empty.
func NewSubscribe(requestID, eventName string) ([]byte, error) {
	return encode(Header{
		Version:        Version,
		RequestID:      requestID,
		MessagePurpose: PurposeSubscribe,
		MessageType:    PurposeCommandRequest,
	}, SubscribeBody{EventName: eventName})
}

func encode(h Header, body any) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding body: %w", err)
	}
	return json.Marshal(Envelope{Header: h, Body: raw})
}

// Decode parses a raw frame into an Envelope.
//
// Postcondition: Returns an envelope with a non-empty MessagePurpose, or an
// error wrapping ErrMalformed.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Header.MessagePurpose == "" {
		return Envelope{}, fmt.Errorf("%w: missing header.messagePurpose", ErrMalformed)
	}
	return env, nil
}

// Response is the decoded reply to a commandRequest.
type Response struct {
	RequestID     string
	StatusCode    int
	StatusMessage string
	Body          json.RawMessage
}

// OK reports whether the command succeeded (status code 0).
func (r *Response) OK() bool {
	return r != nil && r.StatusCode == 0
}

// String renders the response for logs.
func (r *Response) String() string {
	if r == nil {
		return "<nil response>"
	}
	return fmt.Sprintf("%s status=%d %q", r.RequestID, r.StatusCode, r.StatusMessage)
}

type responseBody struct {
	StatusCode    *int   `json:"statusCode"`
	Status        *int   `json:"status"`
	StatusMessage string `json:"statusMessage"`
}

// ParseResponse extracts the status fields from a commandResponse envelope.
// Clients report the result either as "statusCode" or "status"; a body with
// neither is treated as a failure.
//
// Postcondition: Returns a non-nil Response, or an error wrapping ErrMalformed.
func ParseResponse(env Envelope) (*Response, error) {
	var body responseBody
	if len(env.Body) > 0 {
		if err := json.Unmarshal(env.Body, &body); err != nil {
			return nil, fmt.Errorf("%w: response body: %v", ErrMalformed, err)
		}
	}
	resp := &Response{
		RequestID:     env.Header.RequestID,
		StatusCode:    -1,
		StatusMessage: body.StatusMessage,
		Body:          env.Body,
	}
	switch {
	case body.StatusCode != nil:
		resp.StatusCode = *body.StatusCode
	case body.Status != nil:
		resp.StatusCode = *body.Status
	}
	return resp, nil
}
