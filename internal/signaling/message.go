// Package signaling handles the WebSocket channel used to exchange session
// descriptions and ICE candidates with the remote coordinator.
package signaling

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// MessageType identifies the kind of signaling message.
type MessageType string

const (
	MsgTypeOffer     MessageType = "offer"
	MsgTypeAnswer    MessageType = "answer"
	MsgTypeCandidate MessageType = "candidate"
)

// Message is the JSON structure exchanged over the WebSocket. Payload is kept
// raw: it is handed to the transport engine without being reshaped.
type Message struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewMessage marshals payload into a Message of the given type.
func NewMessage(typ MessageType, payload any) (Message, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encode %s payload: %w", typ, err)
	}
	return Message{Type: typ, Payload: data}, nil
}

// Offer wraps a local offer.
func Offer(sd webrtc.SessionDescription) (Message, error) {
	return NewMessage(MsgTypeOffer, sd)
}

// Answer wraps a session description answer.
func Answer(sd webrtc.SessionDescription) (Message, error) {
	return NewMessage(MsgTypeAnswer, sd)
}

// Candidate wraps a local ICE candidate.
func Candidate(init webrtc.ICECandidateInit) (Message, error) {
	return NewMessage(MsgTypeCandidate, init)
}

// Parse decodes one inbound text frame. Malformed JSON, a missing payload or
// an unknown type all yield a *ParseError.
func Parse(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, &ParseError{Raw: data, Err: err}
	}

	switch msg.Type {
	case MsgTypeOffer, MsgTypeAnswer, MsgTypeCandidate:
	case "":
		return Message{}, &ParseError{Raw: data, Err: errMissingType}
	default:
		return Message{}, &ParseError{Raw: data, Err: fmt.Errorf("unrecognized message type %q", msg.Type)}
	}

	if len(msg.Payload) == 0 || bytes.Equal(msg.Payload, []byte("null")) {
		return Message{}, &ParseError{Raw: data, Err: errMissingPayload}
	}
	return msg, nil
}

// SessionDescription decodes the payload of an offer or answer.
func (m Message) SessionDescription() (webrtc.SessionDescription, error) {
	var sd webrtc.SessionDescription
	if m.Type != MsgTypeOffer && m.Type != MsgTypeAnswer {
		return sd, &ParseError{Raw: m.Payload, Err: fmt.Errorf("%s carries no session description", m.Type)}
	}
	if err := json.Unmarshal(m.Payload, &sd); err != nil {
		return sd, &ParseError{Raw: m.Payload, Err: err}
	}
	if sd.SDP == "" {
		return sd, &ParseError{Raw: m.Payload, Err: fmt.Errorf("empty sdp in %s", m.Type)}
	}
	// The envelope type stands in for a payload that omits its own.
	if sd.Type == webrtc.SDPTypeUnknown {
		sd.Type = webrtc.NewSDPType(string(m.Type))
	}
	return sd, nil
}

// ICECandidate decodes the payload of a candidate message.
func (m Message) ICECandidate() (webrtc.ICECandidateInit, error) {
	var init webrtc.ICECandidateInit
	if m.Type != MsgTypeCandidate {
		return init, &ParseError{Raw: m.Payload, Err: fmt.Errorf("%s carries no candidate", m.Type)}
	}
	if err := json.Unmarshal(m.Payload, &init); err != nil {
		return init, &ParseError{Raw: m.Payload, Err: err}
	}
	return init, nil
}
