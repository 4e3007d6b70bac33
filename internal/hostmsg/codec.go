package hostmsg

import (
	"encoding/json"
	"fmt"
)

// Envelope is the JSON frame used in both directions.
type Envelope struct {
	Type      string          `json:"type"`
	RequestID RequestID       `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

const (
	TypeLobbyState             = "lobby_state"
	TypeLobbyLeave             = "lobby_leave"
	TypePendingLobbyAckRequest = "pending_lobby_ack_request"
	TypePendingLobbyAckFail    = "pending_lobby_ack_fail"
	TypeGameStart              = "game_start"
	TypeGameAborted            = "game_aborted"
	TypeGameOver               = "game_over"
	TypeAck                    = "ack"
	TypeReject                 = "reject"
	TypeResponse               = "response"

	responseKindConnectToken = "connect_token"
	responseKindLobbySearch  = "lobby_search_result"
)

type rejectPayload struct {
	Reason string `json:"reason,omitempty"`
}

type responsePayload struct {
	Kind         string                `json:"kind"`
	ConnectToken *ConnectTokenResponse `json:"connect_token,omitempty"`
	LobbySearch  *LobbySearchResult    `json:"lobby_search,omitempty"`
}

// EncodeMessage frames an outbound client message. requestID is zero for
// fire-and-forget messages.
func EncodeMessage(requestID RequestID, msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Type: msg.MessageType(), RequestID: requestID, Payload: payload})
}

// Decode parses and validates one host frame. Host input is untrusted: every
// error here is recoverable and the frame should simply be dropped.
func Decode(data []byte) (Event, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	switch env.Type {
	case TypeLobbyState:
		var msg LobbyStateUpdate
		if err := decodePayload(env, &msg); err != nil {
			return nil, err
		}
		if err := msg.Lobby.validate(env.Type); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeLobbyLeave:
		var msg LobbyLeave
		if err := decodePayload(env, &msg); err != nil {
			return nil, err
		}
		if msg.LobbyID == 0 {
			return nil, &MissingFieldError{MessageType: env.Type, Field: "lobby_id"}
		}
		return msg, nil
	case TypePendingLobbyAckRequest:
		var msg PendingLobbyAckRequest
		if err := decodePayload(env, &msg); err != nil {
			return nil, err
		}
		if msg.LobbyID == 0 {
			return nil, &MissingFieldError{MessageType: env.Type, Field: "lobby_id"}
		}
		return msg, nil
	case TypePendingLobbyAckFail:
		var msg PendingLobbyAckFail
		if err := decodePayload(env, &msg); err != nil {
			return nil, err
		}
		if msg.LobbyID == 0 {
			return nil, &MissingFieldError{MessageType: env.Type, Field: "lobby_id"}
		}
		return msg, nil
	case TypeGameStart:
		var msg GameStart
		if err := decodePayload(env, &msg); err != nil {
			return nil, err
		}
		if msg.Token == "" {
			return nil, &MissingFieldError{MessageType: env.Type, Field: "connect_token"}
		}
		if isEmptyBlob(msg.StartInfo) {
			return nil, &MissingFieldError{MessageType: env.Type, Field: "start_info"}
		}
		return msg, nil
	case TypeGameAborted:
		var msg GameAborted
		if err := decodePayload(env, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeGameOver:
		var msg GameOver
		if err := decodePayload(env, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeAck:
		if env.RequestID == 0 {
			return nil, &MissingFieldError{MessageType: env.Type, Field: "request_id"}
		}
		return RequestAck{RequestID: env.RequestID}, nil
	case TypeReject:
		if env.RequestID == 0 {
			return nil, &MissingFieldError{MessageType: env.Type, Field: "request_id"}
		}
		var p rejectPayload
		if len(env.Payload) > 0 {
			if err := json.Unmarshal(env.Payload, &p); err != nil {
				return nil, &InvalidFieldError{MessageType: env.Type, Field: "payload", Reason: err.Error()}
			}
		}
		return RequestReject{RequestID: env.RequestID, Reason: p.Reason}, nil
	case TypeResponse:
		if env.RequestID == 0 {
			return nil, &MissingFieldError{MessageType: env.Type, Field: "request_id"}
		}
		resp, err := decodeResponse(env)
		if err != nil {
			return nil, err
		}
		return RequestResponse{RequestID: env.RequestID, Response: resp}, nil
	case "":
		return nil, &MissingFieldError{MessageType: "envelope", Field: "type"}
	default:
		return nil, &UnknownTypeError{Type: env.Type}
	}
}

func decodeResponse(env Envelope) (Response, error) {
	var p responsePayload
	if err := decodePayload(env, &p); err != nil {
		return nil, err
	}
	switch p.Kind {
	case responseKindConnectToken:
		if p.ConnectToken == nil {
			return nil, &MissingFieldError{MessageType: env.Type, Field: "connect_token"}
		}
		if p.ConnectToken.Token == "" {
			return nil, &MissingFieldError{MessageType: env.Type, Field: "connect_token.connect_token"}
		}
		return *p.ConnectToken, nil
	case responseKindLobbySearch:
		if p.LobbySearch == nil {
			return nil, &MissingFieldError{MessageType: env.Type, Field: "lobby_search"}
		}
		for _, l := range p.LobbySearch.Lobbies {
			if err := l.validate(env.Type); err != nil {
				return nil, err
			}
		}
		return LobbySearchResponse{Result: *p.LobbySearch}, nil
	case "":
		return nil, &MissingFieldError{MessageType: env.Type, Field: "kind"}
	default:
		return nil, &InvalidFieldError{MessageType: env.Type, Field: "kind", Reason: fmt.Sprintf("unknown response kind %q", p.Kind)}
	}
}

func decodePayload(env Envelope, v any) error {
	if isEmptyBlob(env.Payload) {
		return &MissingFieldError{MessageType: env.Type, Field: "payload"}
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return &InvalidFieldError{MessageType: env.Type, Field: "payload", Reason: err.Error()}
	}
	return nil
}

func isEmptyBlob(b []byte) bool {
	return len(b) == 0 || string(b) == "null"
}

// EncodeEvent frames a host-side message. It is the inverse of Decode and is
// used by the development host.
func EncodeEvent(ev Event) ([]byte, error) {
	env := Envelope{}
	var payload any
	switch e := ev.(type) {
	case LobbyStateUpdate:
		env.Type, payload = TypeLobbyState, e
	case LobbyLeave:
		env.Type, payload = TypeLobbyLeave, e
	case PendingLobbyAckRequest:
		env.Type, payload = TypePendingLobbyAckRequest, e
	case PendingLobbyAckFail:
		env.Type, payload = TypePendingLobbyAckFail, e
	case GameStart:
		env.Type, payload = TypeGameStart, e
	case GameAborted:
		env.Type, payload = TypeGameAborted, e
	case GameOver:
		env.Type, payload = TypeGameOver, e
	case RequestAck:
		env.Type, env.RequestID = TypeAck, e.RequestID
	case RequestReject:
		env.Type, env.RequestID = TypeReject, e.RequestID
		payload = rejectPayload{Reason: e.Reason}
	case RequestResponse:
		env.Type, env.RequestID = TypeResponse, e.RequestID
		switch r := e.Response.(type) {
		case ConnectTokenResponse:
			payload = responsePayload{Kind: responseKindConnectToken, ConnectToken: &r}
		case LobbySearchResponse:
			payload = responsePayload{Kind: responseKindLobbySearch, LobbySearch: &r.Result}
		default:
			return nil, fmt.Errorf("unsupported response %T", e.Response)
		}
	default:
		return nil, fmt.Errorf("event %T is not sent by the host", ev)
	}
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		env.Payload = b
	}
	return json.Marshal(env)
}

// DecodeMessage parses a client frame on the host side.
func DecodeMessage(data []byte) (RequestID, Message, error) {
	if len(data) == 0 {
		return 0, nil, ErrEmptyMessage
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return 0, nil, fmt.Errorf("decode envelope: %w", err)
	}
	var msg Message
	switch env.Type {
	case TypeGetConnectToken:
		msg = &GetConnectToken{}
	case TypeJoinLobby:
		msg = &JoinLobby{}
	case TypeMakeLobby:
		msg = &MakeLobby{}
	case TypeLeaveLobby:
		msg = &LeaveLobby{}
	case TypeLaunchLobbyGame:
		msg = &LaunchLobbyGame{}
	case TypeLobbySearch:
		msg = &LobbySearch{}
	case TypeAckPendingLobby:
		msg = &AckPendingLobby{}
	case TypeNackPendingLobby:
		msg = &NackPendingLobby{}
	default:
		return 0, nil, &UnknownTypeError{Type: env.Type}
	}
	if err := decodePayload(env, msg); err != nil {
		return 0, nil, err
	}
	return env.RequestID, deref(msg), nil
}

func deref(msg Message) Message {
	switch m := msg.(type) {
	case *GetConnectToken:
		return *m
	case *JoinLobby:
		return *m
	case *MakeLobby:
		return *m
	case *LeaveLobby:
		return *m
	case *LaunchLobbyGame:
		return *m
	case *LobbySearch:
		return *m
	case *AckPendingLobby:
		return *m
	case *NackPendingLobby:
		return *m
	default:
		return msg
	}
}
