package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/lrstanley/girc"
)

// filters holds the per-channel word blacklists
type filters struct {
	mu    sync.Mutex
	words map[string]map[string]bool // channel -> lowercase word set
}

func newFilters() *filters {
	return &filters{words: make(map[string]map[string]bool)}
}

func (f *filters) add(channel, word string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.words[channel] == nil {
		f.words[channel] = make(map[string]bool)
	}
	f.words[channel][strings.ToLower(word)] = true
}

func (f *filters) remove(channel, word string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	w := strings.ToLower(word)
	if !f.words[channel][w] {
		return false
	}
	delete(f.words[channel], w)
	return true
}

func (f *filters) list(channel string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for w := range f.words[channel] {
		out = append(out, w)
	}
	return out
}

// match returns the first filtered word found in the message, or ""
func (f *filters) match(channel, text string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lower := strings.ToLower(text)
	for _, field := range strings.Fields(lower) {
		if f.words[channel][field] {
			return field
		}
	}
	return ""
}

func main() {
	server := flag.String("server", envOr("FILTERBOT_SERVER", "localhost:6667"), "IRC server address")
	nick := flag.String("nick", envOr("FILTERBOT_NICK", "filterbot"), "bot nickname")
	password := flag.String("password", os.Getenv("FILTERBOT_PASSWORD"), "IRC server password")
	channels := flag.String("channels", envOr("FILTERBOT_CHANNELS", "#hive"), "comma-separated channels to moderate")
	flag.Parse()

	host, portStr, err := net.SplitHostPort(*server)
	if err != nil {
		log.Fatalf("invalid server address %q: %v", *server, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		log.Fatalf("invalid server port %q: %v", portStr, err)
	}

	joinList := strings.Split(*channels, ",")
	f := newFilters()

	client := girc.New(girc.Config{
		Server:     host,
		Port:       port,
		Nick:       *nick,
		User:       *nick,
		Name:       "IRC Hive filter bot",
		ServerPass: *password,
	})

	client.Handlers.Add(girc.CONNECTED, func(c *girc.Client, e girc.Event) {
		log.Printf("connected to %s as %s", *server, c.GetNick())
		for _, ch := range joinList {
			if ch = strings.TrimSpace(ch); ch != "" {
				c.Cmd.Join(ch)
			}
		}
	})

	client.Handlers.Add(girc.PRIVMSG, func(c *girc.Client, e girc.Event) {
		if len(e.Params) < 2 {
			return
		}
		channel, text := e.Params[0], e.Params[1]
		if !strings.HasPrefix(channel, "#") {
			return
		}
		nick := e.Source.Name

		if strings.HasPrefix(text, "!") {
			handleCommand(c, f, channel, nick, text)
			return
		}

		if word := f.match(channel, text); word != "" {
			log.Printf("kicking %s from %s for %q", nick, channel, word)
			c.Cmd.Kick(channel, nick, "filtered word")
		}
	})

	// Reconnect with a steady delay, the way long-lived relay bots do
	for {
		if err := client.Connect(); err != nil {
			log.Printf("connection to %s lost: %v", *server, err)
		}
		time.Sleep(10 * time.Second)
		log.Printf("reconnecting to %s", *server)
	}
}

// handleCommand processes the moderation commands. Changing the filter
// list requires channel operator status.
func handleCommand(c *girc.Client, f *filters, channel, nick, text string) {
	fields := strings.Fields(text)
	command := fields[0]

	switch command {
	case "!filter", "!unfilter":
		if !isChannelOp(c, channel, nick) {
			c.Cmd.Message(channel, fmt.Sprintf("%s: channel operators only", nick))
			return
		}
		if len(fields) < 2 {
			c.Cmd.Message(channel, fmt.Sprintf("usage: %s <word>", command))
			return
		}
		word := fields[1]
		if command == "!filter" {
			f.add(channel, word)
			c.Cmd.Message(channel, fmt.Sprintf("now filtering %q", strings.ToLower(word)))
		} else if f.remove(channel, word) {
			c.Cmd.Message(channel, fmt.Sprintf("no longer filtering %q", strings.ToLower(word)))
		} else {
			c.Cmd.Message(channel, fmt.Sprintf("%q is not filtered", strings.ToLower(word)))
		}
	case "!listfilter":
		words := f.list(channel)
		if len(words) == 0 {
			c.Cmd.Message(channel, "no filtered words")
			return
		}
		c.Cmd.Message(channel, "filtered words: "+strings.Join(words, ", "))
	}
}

// isChannelOp reports whether the nick holds operator status on the
// channel, as far as the client's state tracking can tell
func isChannelOp(c *girc.Client, channel, nick string) bool {
	user := c.LookupUser(nick)
	if user == nil {
		return false
	}
	perms, ok := user.Perms.Lookup(channel)
	if !ok {
		return false
	}
	return perms.IsAdmin()
}

func envOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
