package server

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/oliynykmax/irc-hive/internal/irc"
)

// handlePass compares the supplied value against the configured server
// password. A wrong password closes the connection.
func handlePass(s *Server, c *Conn, msg *irc.Message) bool {
	if s.config.Server.Password == "" {
		return true
	}
	if len(msg.Params) > 0 && msg.Params[0] == s.config.Server.Password {
		c.authenticated = true
		return true
	}
	c.sendNumeric(irc.ERR_PASSWDMISMATCH, "Incorrect password")
	return false
}

// handleNick validates and applies a nickname change, broadcasting it to
// every channel the user is on
func handleNick(s *Server, c *Conn, msg *irc.Message) bool {
	if len(msg.Params) < 1 {
		c.sendNumeric(irc.ERR_NONICKNAMEGIVEN, "No nickname given")
		return true
	}

	newNick := msg.Params[0]
	if !ValidNickname(newNick) {
		c.sendNumeric(irc.ERR_ERRONEUSNICKNAME, newNick, "Erroneous nickname")
		return true
	}
	if s.findConnByNick(newNick) != nil {
		c.sendNumeric(irc.ERR_NICKNAMEINUSE, newNick, "Nickname is already in use")
		return true
	}

	line := fmt.Sprintf(":%s NICK :%s", c.Prefix(), newNick)
	c.sendRaw(line)
	for _, name := range c.JoinedChannels() {
		if ch := s.getChannel(name); ch != nil {
			if err := ch.Broadcast(line, c); err != nil {
				log.Printf("nick broadcast on %s: %v", name, err)
			}
		}
	}
	c.Nickname = newNick
	return true
}

// handleUser records the username and hostname, rejecting re-registration
func handleUser(s *Server, c *Conn, msg *irc.Message) bool {
	if len(msg.Params) < 4 {
		c.sendNumeric(irc.ERR_NEEDMOREPARAMS, "USER", "Not enough parameters")
		return true
	}
	if c.Username != "" {
		c.sendNumeric(irc.ERR_ALREADYREGISTRED, "You may not reregister")
		return true
	}
	c.Username = msg.Params[0]
	c.Hostname = msg.Params[1]
	return true
}

// handleJoin adds the user to a channel, creating it on first join. The
// reply sequence on success is topic, names and end-of-names, plus a JOIN
// broadcast to everyone on the channel including the joiner.
func handleJoin(s *Server, c *Conn, msg *irc.Message) bool {
	if len(msg.Params) < 1 {
		c.sendNumeric(irc.ERR_NEEDMOREPARAMS, "JOIN", "Not enough parameters")
		return true
	}
	name := msg.Params[0]
	if name == "" {
		return true
	}
	if !ValidChannelName(name) {
		c.sendNumeric(irc.ERR_NOSUCHCHANNEL, name, "No such channel")
		return true
	}

	ch := s.getChannel(name)
	if ch == nil {
		ch = s.createChannel(name)
	}

	var key string
	if len(msg.Params) > 1 {
		key = msg.Params[1]
	}

	if code, text := ch.Join(c, key); code != 0 {
		c.sendNumeric(code, name, text)
		if ch.IsEmpty() {
			s.removeChannel(name)
		}
		return true
	}

	if ch.Topic == "" {
		c.sendNumeric(irc.RPL_NOTOPIC, name, "No topic is set")
	} else {
		c.sendNumeric(irc.RPL_TOPIC, name, ch.Topic)
	}
	c.sendNumeric(irc.RPL_NAMREPLY, "=", name, ch.Names())
	c.sendNumeric(irc.RPL_ENDOFNAMES, name, "End of /NAMES list")

	line := fmt.Sprintf(":%s JOIN :%s", c.Prefix(), name)
	if err := ch.Broadcast(line, nil); err != nil {
		log.Printf("join broadcast on %s: %v", name, err)
	}
	return true
}

// handlePart removes the user from a channel it is on
func handlePart(s *Server, c *Conn, msg *irc.Message) bool {
	if len(msg.Params) < 1 {
		c.sendNumeric(irc.ERR_NEEDMOREPARAMS, "PART", "Not enough parameters")
		return true
	}
	name := msg.Params[0]
	if !ValidChannelName(name) {
		c.sendNumeric(irc.ERR_NOSUCHCHANNEL, name, "No such channel")
		return true
	}

	ch := s.getChannel(name)
	if ch == nil || !ch.OnChannel(c) {
		c.sendNumeric(422, name, "You're not on that channel")
		return true
	}

	line := fmt.Sprintf(":%s PART %s", c.Prefix(), name)
	if len(msg.Params) > 1 {
		line += " :" + msg.Params[1]
	}
	c.sendRaw(line)
	s.leaveChannel(ch, c, line)
	return true
}

// handlePrivmsg delivers a message to a channel the sender is on, or to a
// single online nickname
func handlePrivmsg(s *Server, c *Conn, msg *irc.Message) bool {
	if len(msg.Params) < 1 {
		c.sendNumeric(irc.ERR_NORECIPIENT, "No recipient given")
		return true
	}
	if len(msg.Params) < 2 {
		c.sendNumeric(irc.ERR_NOTEXTTOSEND, "No text to send")
		return true
	}

	target, text := msg.Params[0], msg.Params[1]
	line := fmt.Sprintf(":%s PRIVMSG %s :%s", c.Prefix(), target, text)

	if strings.HasPrefix(target, "#") {
		ch := s.getChannel(target)
		if ch == nil || !ch.OnChannel(c) {
			c.sendNumeric(irc.ERR_NOTONCHANNEL, target, "You're not on that channel")
			return true
		}
		if err := ch.Broadcast(line, c); err != nil {
			log.Printf("privmsg broadcast on %s: %v", target, err)
		}
		return true
	}

	t := s.findConnByNick(target)
	if t == nil {
		c.sendNumeric(irc.ERR_NOSUCHNICK, target, "No such nick")
		return true
	}
	t.sendRaw(line)
	return true
}

// handleKick lets a channel operator remove a regular member
func handleKick(s *Server, c *Conn, msg *irc.Message) bool {
	if len(msg.Params) < 2 {
		c.sendNumeric(irc.ERR_NEEDMOREPARAMS, "KICK", "Not enough parameters")
		return true
	}
	name, targetNick := msg.Params[0], msg.Params[1]

	ch := s.getChannel(name)
	if ch == nil {
		c.sendNumeric(irc.ERR_NOSUCHCHANNEL, name, "No such channel")
		return true
	}
	if !ch.OnChannel(c) {
		c.sendNumeric(irc.ERR_NOTONCHANNEL, name, "You're not on that channel")
		return true
	}
	if !ch.IsOperator(c) {
		c.sendNumeric(irc.ERR_CHANOPRIVSNEEDED, name, "You're not a channel operator")
		return true
	}

	for _, op := range ch.operators {
		if op.Nickname == targetNick {
			c.sendNumeric(irc.ERR_NOPRIVILEGES, "Permission Denied- You're not an IRC operator")
			return true
		}
	}

	var target *Conn
	for _, m := range ch.members {
		if m.Nickname == targetNick {
			target = m
			break
		}
	}
	if target == nil {
		c.sendNumeric(irc.ERR_USERNOTINCHANNEL, targetNick, name, "They aren't on that channel")
		return true
	}

	reason := c.Nickname
	if len(msg.Params) > 2 {
		reason = msg.Params[2]
	}

	line := fmt.Sprintf(":%s KICK %s %s :%s", c.Prefix(), name, targetNick, reason)
	if err := ch.Broadcast(line, nil); err != nil {
		log.Printf("kick broadcast on %s: %v", name, err)
	}
	ch.Remove(target)
	return true
}

// handleInvite registers an invite for a user and relays it. The invite is
// also relayed when the channel does not exist yet.
func handleInvite(s *Server, c *Conn, msg *irc.Message) bool {
	if len(msg.Params) < 2 {
		c.sendNumeric(irc.ERR_NEEDMOREPARAMS, "INVITE", "Not enough parameters")
		return true
	}
	targetNick, name := msg.Params[0], msg.Params[1]

	target := s.findConnByNick(targetNick)
	if target == nil {
		c.sendNumeric(irc.ERR_NOSUCHNICK, targetNick, "No such nick")
		return true
	}
	if target == c {
		c.sendNumeric(irc.ERR_USERONCHANNEL, targetNick, name, "User already on channel")
		return true
	}

	if ch := s.getChannel(name); ch != nil {
		if !ch.OnChannel(c) {
			c.sendNumeric(irc.ERR_NOTONCHANNEL, name, "You're not on that channel")
			return true
		}
		if ch.HasMode('i') && !ch.IsOperator(c) {
			c.sendNumeric(irc.ERR_CHANOPRIVSNEEDED, name, "You're not a channel operator")
			return true
		}
		if ch.OnChannel(target) {
			c.sendNumeric(irc.ERR_USERONCHANNEL, targetNick, name, "User already on channel")
			return true
		}
		ch.Invite(target)
	}

	target.sendRaw(fmt.Sprintf(":%s INVITE %s :%s", c.Prefix(), targetNick, name))
	c.sendNumeric(irc.RPL_INVITING, targetNick, name, "Invitation sent")
	return true
}

// handleTopic returns or sets a channel topic. Setting requires operator
// privilege on a topic-locked (+t) channel.
func handleTopic(s *Server, c *Conn, msg *irc.Message) bool {
	if len(msg.Params) < 1 {
		c.sendNumeric(irc.ERR_NEEDMOREPARAMS, "TOPIC", "Not enough parameters")
		return true
	}
	name := msg.Params[0]

	ch := s.getChannel(name)
	if ch == nil {
		c.sendNumeric(irc.ERR_NOSUCHCHANNEL, name, "No such channel")
		return true
	}
	if !ch.OnChannel(c) {
		c.sendNumeric(irc.ERR_NOTONCHANNEL, name, "You're not on that channel")
		return true
	}

	if len(msg.Params) < 2 {
		if ch.Topic == "" {
			c.sendNumeric(irc.RPL_NOTOPIC, name, "No topic is set")
		} else {
			c.sendNumeric(irc.RPL_TOPIC, name, ch.Topic)
		}
		return true
	}

	if ch.HasMode('t') && !ch.IsOperator(c) {
		c.sendNumeric(irc.ERR_CHANOPRIVSNEEDED, name, "You're not a channel operator")
		return true
	}

	ch.Topic = msg.Params[1]
	line := fmt.Sprintf(":%s TOPIC %s :%s", c.Prefix(), name, ch.Topic)
	if err := ch.Broadcast(line, nil); err != nil {
		log.Printf("topic broadcast on %s: %v", name, err)
	}
	return true
}

const (
	supportedModes     = "itkol"
	parameterizedModes = "klo"
)

// handleMode views or changes channel modes, or acknowledges a
// self-targeted user mode. Channel mode application is all-or-nothing:
// the whole command is validated and applied against a snapshot, and any
// mid-sequence failure rolls the channel back untouched.
func handleMode(s *Server, c *Conn, msg *irc.Message) bool {
	if len(msg.Params) < 1 {
		c.sendNumeric(irc.ERR_NEEDMOREPARAMS, "MODE", "Not enough parameters")
		return true
	}

	target := msg.Params[0]
	if !strings.HasPrefix(target, "#") {
		if target != c.Nickname {
			c.sendNumeric(irc.ERR_USERSDONTMATCH, "Users don't match")
		}
		return true
	}

	ch := s.getChannel(target)
	if ch == nil || !ch.OnChannel(c) {
		c.sendNumeric(irc.ERR_NOTONCHANNEL, target, "You're not on that channel")
		return true
	}

	if len(msg.Params) < 2 {
		modes := ch.Modes()
		if modes == "" {
			modes = "+"
		}
		c.sendNumeric(irc.RPL_CHANNELMODEIS, target, modes)
		c.sendNumeric(irc.RPL_CREATIONTIME, target, strconv.FormatInt(ch.Created.Unix(), 10))
		return true
	}

	if !ch.IsOperator(c) {
		c.sendNumeric(irc.ERR_CHANOPRIVSNEEDED, target, "You're not a channel operator")
		return true
	}

	enable, disable, ok := parseModeString(msg.Params[1])
	if !ok || !validModeRun(enable) || !validModeRun(disable) {
		c.sendNumeric(irc.ERR_UNKNOWNMODE, "Unknown mode")
		return true
	}

	needed := 2
	for _, m := range enable {
		if strings.ContainsRune(parameterizedModes, m) {
			needed++
		}
	}
	if len(msg.Params) < needed {
		c.sendNumeric(irc.ERR_NEEDMOREPARAMS, "MODE", "Not enough parameters")
		return true
	}

	backup := ch.Snapshot()
	index := 2
	var applied []string
	for _, m := range enable {
		switch m {
		case 'k':
			ch.Key = msg.Params[index]
			applied = append(applied, msg.Params[index])
			index++
		case 'l':
			limit, err := strconv.Atoi(msg.Params[index])
			if err != nil || limit < 0 {
				ch.Restore(backup)
				return true
			}
			ch.Limit = limit
			applied = append(applied, msg.Params[index])
			index++
		case 'o':
			nick := msg.Params[index]
			index++
			if !ch.Promote(nick) {
				c.sendNumeric(irc.ERR_USERNOTINCHANNEL, nick, target, "They aren't on that channel")
				ch.Restore(backup)
				return true
			}
			applied = append(applied, nick)
		}
	}

	ch.SetModes(enable)
	ch.UnsetModes(disable)

	modeLine := ""
	if enable != "" {
		modeLine = "+" + enable
	}
	if disable != "" {
		modeLine += "-" + disable
	}
	parts := append([]string{modeLine}, applied...)
	line := fmt.Sprintf(":%s MODE %s %s", c.Prefix(), target, strings.Join(parts, " "))
	if err := ch.Broadcast(line, nil); err != nil {
		log.Printf("mode broadcast on %s: %v", target, err)
	}
	return true
}

// parseModeString splits a +/- prefixed mode run into the letters to
// enable and disable. Each sign must be followed by at least one letter.
func parseModeString(input string) (enable, disable string, ok bool) {
	if input == "" {
		return "", "", false
	}
	valid := true
	for i := 0; i < len(input); {
		b := input[i]
		if (b != '+' && b != '-') || !valid {
			return "", "", false
		}
		plus := b == '+'
		i++
		valid = false
		for i < len(input) && isAlpha(input[i]) {
			if plus {
				enable += string(input[i])
			} else {
				disable += string(input[i])
			}
			valid = true
			i++
		}
	}
	if !valid {
		return "", "", false
	}
	return enable, disable, true
}

// validModeRun checks that every letter is a supported mode and appears
// at most once
func validModeRun(letters string) bool {
	for i, m := range letters {
		if !strings.ContainsRune(supportedModes, m) {
			return false
		}
		if strings.ContainsRune(letters[i+1:], m) {
			return false
		}
	}
	return true
}

func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}

// handleQuit removes the user from every joined channel with a QUIT
// broadcast and tears the connection down
func handleQuit(s *Server, c *Conn, msg *irc.Message) bool {
	reason := "Client quit"
	if len(msg.Params) > 0 {
		reason = msg.Params[0]
	}
	s.quitConn(c, reason)
	return false
}

// handleCap answers capability negotiation with an empty capability set
func handleCap(s *Server, c *Conn, msg *irc.Message) bool {
	if len(msg.Params) < 1 {
		c.sendNumeric(irc.ERR_NEEDMOREPARAMS, "CAP", "Not enough parameters")
		return true
	}
	switch msg.Params[0] {
	case "LS":
		c.sendMessage(s.Name(), "CAP", "*", "LS", "")
	case "END":
	default:
		c.sendNumeric(irc.ERR_INVALIDCAPCMD, msg.Params[0], "Unsupported subcommand")
	}
	return true
}

// handleWhois replies with the end-of-WHOIS marker
func handleWhois(s *Server, c *Conn, msg *irc.Message) bool {
	c.sendNumeric(irc.RPL_ENDOFWHOIS, "End of WHOIS list")
	return true
}

// handleWho lists the members and operators of a channel the requester
// is on
func handleWho(s *Server, c *Conn, msg *irc.Message) bool {
	if len(msg.Params) < 1 {
		c.sendNumeric(irc.ERR_NEEDMOREPARAMS, "WHO", "Not enough parameters")
		return true
	}
	name := msg.Params[0]

	ch := s.getChannel(name)
	if ch == nil || !ch.OnChannel(c) {
		c.sendNumeric(irc.ERR_NOTONCHANNEL, name, "You're not on that channel")
		return true
	}

	for _, m := range ch.members {
		c.sendNumeric(irc.RPL_WHOREPLY, name, m.Username, m.Hostname, s.Name(), m.Nickname, "H")
	}
	for _, op := range ch.operators {
		c.sendNumeric(irc.RPL_WHOREPLY, name, op.Username, op.Hostname, s.Name(), op.Nickname, "H@")
	}
	c.sendNumeric(irc.RPL_ENDOFWHO, name, "End of /WHO list")
	return true
}

// handlePing echoes the origin back in a PONG
func handlePing(s *Server, c *Conn, msg *irc.Message) bool {
	if len(msg.Params) < 1 {
		c.sendNumeric(irc.ERR_NOORIGIN, "No origin specified")
		return true
	}
	c.sendMessage(s.Name(), "PONG", s.Name(), msg.Params[0])
	return true
}
