package server

import (
	"fmt"
	"regexp"
)

var (
	nickPattern    = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)
	channelPattern = regexp.MustCompile(`^#[A-Za-z0-9_-]{1,50}$`)
)

// User holds the identity of one connection. It lives inside its Conn and
// has no existence independent of it. Joined channels are tracked by name
// only; the channel objects themselves belong to the server registry.
type User struct {
	Nickname string
	Username string
	Hostname string

	channels map[string]bool
}

// Prefix returns the nick!user@host connection prefix used in broadcasts
func (u *User) Prefix() string {
	return fmt.Sprintf("%s!%s@%s", u.Nickname, u.Username, u.Hostname)
}

// JoinedChannels returns the names of the channels the user is on
func (u *User) JoinedChannels() []string {
	names := make([]string, 0, len(u.channels))
	for name := range u.channels {
		names = append(names, name)
	}
	return names
}

// OnChannel reports whether the user is on the named channel
func (u *User) OnChannel(name string) bool {
	return u.channels[name]
}

func (u *User) trackChannel(name string) {
	if u.channels == nil {
		u.channels = make(map[string]bool)
	}
	u.channels[name] = true
}

func (u *User) forgetChannel(name string) {
	delete(u.channels, name)
}

// ValidNickname reports whether a nickname is 1-9 characters starting with
// a letter, followed by letters, digits, underscores or dashes
func ValidNickname(nick string) bool {
	return len(nick) >= 1 && len(nick) <= 9 && nickPattern.MatchString(nick)
}

// ValidChannelName reports whether a channel name is a # followed by 1-50
// letters, digits, underscores or dashes
func ValidChannelName(name string) bool {
	return channelPattern.MatchString(name)
}
