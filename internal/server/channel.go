package server

import (
	"sort"
	"strings"
	"time"
)

// Channel represents an IRC channel. Members and operators are disjoint
// sets kept in insertion order so that operator promotion is deterministic.
// Channels are owned by the server registry and must only be touched while
// the server mutex is held.
type Channel struct {
	Name    string
	Topic   string
	Key     string
	Limit   int
	Created time.Time

	members   []*Conn
	operators []*Conn
	invites   map[string]bool
	modes     map[rune]bool
}

// NewChannel creates a new, empty channel
func NewChannel(name string) *Channel {
	return &Channel{
		Name:    name,
		Created: time.Now(),
		invites: make(map[string]bool),
		modes:   make(map[rune]bool),
	}
}

// IsEmpty reports whether the channel has neither members nor operators
func (ch *Channel) IsEmpty() bool {
	return len(ch.members) == 0 && len(ch.operators) == 0
}

// MemberCount returns the number of members and operators combined
func (ch *Channel) MemberCount() int {
	return len(ch.members) + len(ch.operators)
}

// IsMember reports whether the connection is a regular member
func (ch *Channel) IsMember(c *Conn) bool {
	return connIndex(ch.members, c) >= 0
}

// IsOperator reports whether the connection is a channel operator
func (ch *Channel) IsOperator(c *Conn) bool {
	return connIndex(ch.operators, c) >= 0
}

// OnChannel reports whether the connection is a member or an operator
func (ch *Channel) OnChannel(c *Conn) bool {
	return ch.IsMember(c) || ch.IsOperator(c)
}

// HasMode reports whether a channel mode is set
func (ch *Channel) HasMode(mode rune) bool {
	return ch.modes[mode]
}

// Invite registers a pending invite for the connection
func (ch *Channel) Invite(c *Conn) {
	ch.invites[c.ID] = true
}

// IsInvited reports whether the connection holds a pending invite
func (ch *Channel) IsInvited(c *Conn) bool {
	return ch.invites[c.ID]
}

// Join adds the connection to the channel, enforcing the key, limit and
// invite-only gates. It returns 0 on success or the numeric reply code and
// text to send back to the joiner. The first user to join an empty channel
// always becomes an operator; a successful invited join consumes the invite.
func (ch *Channel) Join(c *Conn, key string) (int, string) {
	switch {
	case ch.OnChannel(c):
		return 443, "You are already on the channel"
	case ch.modes['l'] && ch.MemberCount() >= ch.Limit:
		return 471, "Cannot join channel (+l)"
	case ch.modes['i']:
		if !ch.invites[c.ID] {
			return 473, "Cannot join channel (+i)"
		}
		if ch.modes['k'] && key != ch.Key {
			return 475, "Cannot join channel (+k)"
		}
		delete(ch.invites, c.ID)
	case ch.modes['k']:
		if key != ch.Key {
			return 475, "Cannot join channel (+k)"
		}
	}

	if ch.IsEmpty() {
		ch.operators = append(ch.operators, c)
	} else {
		ch.members = append(ch.members, c)
	}
	c.trackChannel(ch.Name)
	return 0, ""
}

// Remove takes the connection out of the channel and maintains the operator
// invariants: when the last operator leaves a channel that still has
// members, the first member by insertion order is promoted; a channel left
// with nobody on it reports itself empty so the server can destroy it.
// The promoted connection, if any, is returned.
func (ch *Channel) Remove(c *Conn) (promoted *Conn) {
	if i := connIndex(ch.members, c); i >= 0 {
		ch.members = append(ch.members[:i], ch.members[i+1:]...)
	} else if i := connIndex(ch.operators, c); i >= 0 {
		ch.operators = append(ch.operators[:i], ch.operators[i+1:]...)
		if len(ch.operators) == 0 && len(ch.members) > 0 {
			promoted = ch.members[0]
			ch.members = ch.members[1:]
			ch.operators = append(ch.operators, promoted)
		}
	} else {
		return nil
	}
	c.forgetChannel(ch.Name)
	return promoted
}

// Promote moves the member with the given nickname into the operator set.
// It reports false when no regular member holds that nickname.
func (ch *Channel) Promote(nick string) bool {
	i := -1
	for j, m := range ch.members {
		if m.Nickname == nick {
			i = j
			break
		}
	}
	if i < 0 {
		return false
	}
	target := ch.members[i]
	ch.members = append(ch.members[:i], ch.members[i+1:]...)
	ch.operators = append(ch.operators, target)
	return true
}

// SetModes enables every mode letter in the given string except the
// transient operator toggle, which is never stored
func (ch *Channel) SetModes(letters string) {
	for _, m := range letters {
		if m == 'o' {
			continue
		}
		ch.modes[m] = true
	}
}

// UnsetModes disables every mode letter in the given string. Turning off
// invite-only clears the pending invite list.
func (ch *Channel) UnsetModes(letters string) {
	for _, m := range letters {
		if m == 'i' {
			ch.invites = make(map[string]bool)
		}
		delete(ch.modes, m)
	}
}

// Modes returns the current mode string, or "" when no modes are set
func (ch *Channel) Modes() string {
	if len(ch.modes) == 0 {
		return ""
	}
	letters := make([]rune, 0, len(ch.modes))
	for m := range ch.modes {
		letters = append(letters, m)
	}
	sort.Slice(letters, func(i, j int) bool { return letters[i] < letters[j] })
	return "+" + string(letters)
}

// Names returns the space-separated member listing for a NAMES reply,
// operators first with their @ prefix
func (ch *Channel) Names() string {
	var names []string
	for _, c := range ch.operators {
		names = append(names, "@"+c.Nickname)
	}
	for _, c := range ch.members {
		names = append(names, c.Nickname)
	}
	return strings.Join(names, " ")
}

// Broadcast sends a line to every member and operator except the given
// connection. A failed send aborts the remaining fan-out and is reported
// to the caller as a local I/O error.
func (ch *Channel) Broadcast(line string, except *Conn) error {
	for _, c := range ch.operators {
		if c == except {
			continue
		}
		if err := c.sendRaw(line); err != nil {
			return err
		}
	}
	for _, c := range ch.members {
		if c == except {
			continue
		}
		if err := c.sendRaw(line); err != nil {
			return err
		}
	}
	return nil
}

// channelState is a snapshot of every mutable channel field, used to make
// MODE application all-or-nothing
type channelState struct {
	topic     string
	key       string
	limit     int
	members   []*Conn
	operators []*Conn
	invites   map[string]bool
	modes     map[rune]bool
}

// Snapshot captures the channel's mutable state
func (ch *Channel) Snapshot() channelState {
	st := channelState{
		topic:     ch.Topic,
		key:       ch.Key,
		limit:     ch.Limit,
		members:   append([]*Conn(nil), ch.members...),
		operators: append([]*Conn(nil), ch.operators...),
		invites:   make(map[string]bool, len(ch.invites)),
		modes:     make(map[rune]bool, len(ch.modes)),
	}
	for id := range ch.invites {
		st.invites[id] = true
	}
	for m := range ch.modes {
		st.modes[m] = true
	}
	return st
}

// Restore rolls the channel back to a previously captured snapshot
func (ch *Channel) Restore(st channelState) {
	ch.Topic = st.topic
	ch.Key = st.key
	ch.Limit = st.limit
	ch.members = st.members
	ch.operators = st.operators
	ch.invites = st.invites
	ch.modes = st.modes
}

func connIndex(conns []*Conn, c *Conn) int {
	for i, other := range conns {
		if other == c {
			return i
		}
	}
	return -1
}
