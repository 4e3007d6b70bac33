// Package devhost is a small in-process stand-in for the host service. It
// speaks the client wire protocol well enough to drive a client through
// lobbies, ack prompts and game starts without the real matchmaker.
package devhost

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"providence/internal/hostmsg"
)

const writeWait = 5 * time.Second

type Options struct {
	// Request types answered with a reject.
	RejectTypes []string
	// Request types that are never answered.
	SilentTypes []string
}

// Received is one client frame as seen by the host.
type Received struct {
	ClientID  string            `json:"client_id"`
	RequestID hostmsg.RequestID `json:"request_id"`
	Message   hostmsg.Message   `json:"message"`
}

type peer struct {
	conn     *websocket.Conn
	clientID string
	send     chan []byte
}

type Server struct {
	upgrader websocket.Upgrader
	reject   map[string]bool
	silent   map[string]bool

	mu        sync.Mutex
	peers     map[*peer]struct{}
	received  []Received
	lobbies   map[hostmsg.LobbyID]*hostmsg.LobbyData
	nextLobby hostmsg.LobbyID
	nextGame  hostmsg.GameID
	tokenSeq  int
}

func New(opts Options) *Server {
	s := &Server{
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		reject:    map[string]bool{},
		silent:    map[string]bool{},
		peers:     map[*peer]struct{}{},
		lobbies:   map[hostmsg.LobbyID]*hostmsg.LobbyData{},
		nextLobby: 1,
		nextGame:  100,
	}
	for _, t := range opts.RejectTypes {
		s.reject[strings.TrimSpace(t)] = true
	}
	for _, t := range opts.SilentTypes {
		s.silent[strings.TrimSpace(t)] = true
	}
	return s
}

func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	p := &peer{conn: conn, clientID: r.Header.Get("X-Client-Id"), send: make(chan []byte, 32)}
	s.mu.Lock()
	s.peers[p] = struct{}{}
	s.mu.Unlock()
	log.Info().Str("client_id", p.clientID).Msg("dev host: client connected")

	go s.writeLoop(p)
	s.readLoop(p)
}

func (s *Server) readLoop(p *peer) {
	defer func() {
		s.unregister(p)
		_ = p.conn.Close()
	}()
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		id, msg, err := hostmsg.DecodeMessage(data)
		if err != nil {
			log.Warn().Err(err).Msg("dev host: bad client frame")
			continue
		}
		s.handle(p, id, msg)
	}
}

func (s *Server) writeLoop(p *peer) {
	for frame := range p.send {
		_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := p.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			return
		}
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}

func (s *Server) unregister(p *peer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[p]; ok {
		delete(s.peers, p)
		close(p.send)
	}
}

func (s *Server) handle(p *peer, id hostmsg.RequestID, msg hostmsg.Message) {
	s.mu.Lock()
	s.received = append(s.received, Received{ClientID: p.clientID, RequestID: id, Message: msg})
	rejected := s.reject[msg.MessageType()]
	silent := s.silent[msg.MessageType()]
	s.mu.Unlock()

	if silent {
		return
	}
	if rejected {
		s.sendTo(p, hostmsg.RequestReject{RequestID: id, Reason: "rejected_by_dev_host"})
		return
	}

	switch m := msg.(type) {
	case hostmsg.GetConnectToken:
		s.sendTo(p, hostmsg.RequestResponse{RequestID: id, Response: hostmsg.ConnectTokenResponse{GameID: m.GameID, Token: s.newToken(m.GameID)}})
	case hostmsg.LobbySearch:
		s.sendTo(p, hostmsg.RequestResponse{RequestID: id, Response: hostmsg.LobbySearchResponse{Result: s.search(m.Request)}})
	case hostmsg.MakeLobby:
		s.sendTo(p, hostmsg.RequestAck{RequestID: id})
		lobby := s.makeLobby(p.clientID, m)
		s.sendTo(p, hostmsg.LobbyStateUpdate{Lobby: lobby})
	case hostmsg.JoinLobby:
		lobby, ok := s.joinLobby(p.clientID, m.LobbyID)
		if !ok {
			s.sendTo(p, hostmsg.RequestReject{RequestID: id, Reason: "lobby_unavailable"})
			return
		}
		s.sendTo(p, hostmsg.RequestAck{RequestID: id})
		s.Broadcast(hostmsg.LobbyStateUpdate{Lobby: lobby})
	case hostmsg.LeaveLobby:
		s.leaveLobby(p.clientID, m.LobbyID)
		s.sendTo(p, hostmsg.RequestAck{RequestID: id})
		s.sendTo(p, hostmsg.LobbyLeave{LobbyID: m.LobbyID})
	case hostmsg.LaunchLobbyGame:
		s.sendTo(p, hostmsg.RequestAck{RequestID: id})
		s.Broadcast(hostmsg.PendingLobbyAckRequest{LobbyID: m.LobbyID})
	case hostmsg.AckPendingLobby:
		gameID := s.newGameID()
		info, _ := json.Marshal(map[string]any{"game_id": gameID, "lobby_id": m.LobbyID})
		s.sendTo(p, hostmsg.GameStart{GameID: gameID, Token: s.newToken(gameID), StartInfo: hostmsg.GameStartInfo(info)})
	case hostmsg.NackPendingLobby:
		s.sendTo(p, hostmsg.PendingLobbyAckFail{LobbyID: m.LobbyID})
	}
}

func (s *Server) sendTo(p *peer, ev hostmsg.Event) {
	frame, err := hostmsg.EncodeEvent(ev)
	if err != nil {
		log.Error().Err(err).Msg("dev host: encode failed")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.peers[p]; !ok {
		return
	}
	select {
	case p.send <- frame:
	default:
	}
}

// Broadcast pushes a host message to every connected client.
func (s *Server) Broadcast(ev hostmsg.Event) error {
	frame, err := hostmsg.EncodeEvent(ev)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for p := range s.peers {
		select {
		case p.send <- frame:
		default:
		}
	}
	return nil
}

// DropAll severs every connection without a close handshake.
func (s *Server) DropAll() {
	s.mu.Lock()
	peers := make([]*peer, 0, len(s.peers))
	for p := range s.peers {
		peers = append(peers, p)
	}
	s.mu.Unlock()
	for _, p := range peers {
		_ = p.conn.UnderlyingConn().Close()
	}
}

func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.peers)
}

func (s *Server) Received() []Received {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Received, len(s.received))
	copy(out, s.received)
	return out
}

func (s *Server) newToken(gameID hostmsg.GameID) hostmsg.ServerConnectToken {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenSeq++
	return hostmsg.ServerConnectToken(fmt.Sprintf("token-%d-%d", gameID, s.tokenSeq))
}

func (s *Server) newGameID() hostmsg.GameID {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextGame++
	return s.nextGame
}

func (s *Server) makeLobby(owner string, m hostmsg.MakeLobby) hostmsg.LobbyData {
	s.mu.Lock()
	defer s.mu.Unlock()
	maxPlayers := m.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = 2
	}
	lobby := &hostmsg.LobbyData{
		ID:         s.nextLobby,
		Name:       m.Name,
		OwnerID:    owner,
		MaxPlayers: maxPlayers,
		Members:    []hostmsg.LobbyMember{{ClientID: owner}},
	}
	s.nextLobby++
	s.lobbies[lobby.ID] = lobby
	return cloneLobby(lobby)
}

func (s *Server) joinLobby(clientID string, id hostmsg.LobbyID) (hostmsg.LobbyData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobby, ok := s.lobbies[id]
	if !ok || len(lobby.Members) >= lobby.MaxPlayers {
		return hostmsg.LobbyData{}, false
	}
	if !lobby.HasMember(clientID) {
		lobby.Members = append(lobby.Members, hostmsg.LobbyMember{ClientID: clientID, Team: len(lobby.Members)})
	}
	return cloneLobby(lobby), true
}

func (s *Server) leaveLobby(clientID string, id hostmsg.LobbyID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	lobby, ok := s.lobbies[id]
	if !ok {
		return
	}
	kept := lobby.Members[:0]
	for _, m := range lobby.Members {
		if m.ClientID != clientID {
			kept = append(kept, m)
		}
	}
	lobby.Members = kept
	if len(kept) == 0 {
		delete(s.lobbies, id)
	}
}

func (s *Server) search(req hostmsg.LobbySearchRequest) hostmsg.LobbySearchResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := hostmsg.LobbySearchResult{Request: req}
	for _, l := range s.lobbies {
		if req.NameFilter != "" && !strings.Contains(l.Name, req.NameFilter) {
			continue
		}
		res.Lobbies = append(res.Lobbies, cloneLobby(l))
		if req.PageSize > 0 && len(res.Lobbies) >= req.PageSize {
			break
		}
	}
	return res
}

func cloneLobby(l *hostmsg.LobbyData) hostmsg.LobbyData {
	out := *l
	out.Members = append([]hostmsg.LobbyMember(nil), l.Members...)
	return out
}
