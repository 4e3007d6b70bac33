package session

import "providence/internal/hostmsg"

// ClientStarter holds the host's game-start package for the game this client
// should be in. StartInfo is nil exactly when no starter is set.
type ClientStarter struct {
	gameID    hostmsg.GameID
	startInfo hostmsg.GameStartInfo
}

func (s *ClientStarter) Set(id hostmsg.GameID, info hostmsg.GameStartInfo) {
	s.gameID = id
	s.startInfo = info.Clone()
	if s.startInfo == nil {
		s.startInfo = hostmsg.GameStartInfo("null")
	}
}

func (s *ClientStarter) HasStarter() bool { return s.startInfo != nil }

func (s *ClientStarter) GameID() (hostmsg.GameID, bool) {
	return s.gameID, s.HasStarter()
}

// StartInfo returns a copy; the starter never shares its blob.
func (s *ClientStarter) StartInfo() hostmsg.GameStartInfo {
	return s.startInfo.Clone()
}

func (s *ClientStarter) Clear() bool {
	had := s.HasStarter()
	s.gameID = 0
	s.startInfo = nil
	return had
}

// ClearIfMatches clears the starter only when it is for id.
func (s *ClientStarter) ClearIfMatches(id hostmsg.GameID) bool {
	if !s.HasStarter() || s.gameID != id {
		return false
	}
	return s.Clear()
}

// CachedConnectToken is a take-once slot.
type CachedConnectToken struct {
	gameID hostmsg.GameID
	token  hostmsg.ServerConnectToken
	set    bool
}

func (c *CachedConnectToken) Set(id hostmsg.GameID, token hostmsg.ServerConnectToken) {
	c.gameID = id
	c.token = token
	c.set = true
}

func (c *CachedConnectToken) Take() (hostmsg.GameID, hostmsg.ServerConnectToken, bool) {
	if !c.set {
		return 0, "", false
	}
	id, token := c.gameID, c.token
	*c = CachedConnectToken{}
	return id, token, true
}

// Peek reports the cached game id without consuming the token.
func (c *CachedConnectToken) Peek() (hostmsg.GameID, bool) {
	return c.gameID, c.set
}

func (c *CachedConnectToken) ClearIfMatches(id hostmsg.GameID) {
	if c.set && c.gameID == id {
		*c = CachedConnectToken{}
	}
}
