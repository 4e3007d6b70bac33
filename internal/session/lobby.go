package session

import "providence/internal/hostmsg"

// LobbyCache holds the joined lobby and the latest search page.
type LobbyCache struct {
	display     *hostmsg.LobbyData
	page        *hostmsg.LobbySearchResult
	pageRequest *hostmsg.LobbySearchRequest
}

func (c *LobbyCache) SetDisplay(lobby hostmsg.LobbyData) {
	l := cloneLobby(lobby)
	c.display = &l
}

// ClearDisplay clears the joined lobby if it is id.
func (c *LobbyCache) ClearDisplay(id hostmsg.LobbyID) bool {
	if c.display == nil || c.display.ID != id {
		return false
	}
	c.display = nil
	return true
}

func (c *LobbyCache) ClearAnyDisplay() bool {
	had := c.display != nil
	c.display = nil
	return had
}

func (c *LobbyCache) Display() (hostmsg.LobbyData, bool) {
	if c.display == nil {
		return hostmsg.LobbyData{}, false
	}
	return cloneLobby(*c.display), true
}

func (c *LobbyCache) SetPageRequest(req hostmsg.LobbySearchRequest) {
	c.pageRequest = &req
}

// SetPage keeps a search result only when it answers the latest request.
func (c *LobbyCache) SetPage(result hostmsg.LobbySearchResult) bool {
	if c.pageRequest == nil || *c.pageRequest != result.Request {
		return false
	}
	lobbies := make([]hostmsg.LobbyData, 0, len(result.Lobbies))
	for _, l := range result.Lobbies {
		lobbies = append(lobbies, cloneLobby(l))
	}
	result.Lobbies = lobbies
	c.page = &result
	return true
}

func (c *LobbyCache) Page() (hostmsg.LobbySearchResult, bool) {
	if c.page == nil {
		return hostmsg.LobbySearchResult{}, false
	}
	return *c.page, true
}

func cloneLobby(l hostmsg.LobbyData) hostmsg.LobbyData {
	members := make([]hostmsg.LobbyMember, len(l.Members))
	copy(members, l.Members)
	l.Members = members
	return l
}
