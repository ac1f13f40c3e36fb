package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	_ "github.com/joho/godotenv/autoload"
)

const (
	initialBackoff = 2 * time.Second
	maxBackoff     = 30 * time.Second
)

type bot struct {
	conn     *ircevent.Connection
	channels []string
	askURL   string
	http     *http.Client

	mu           sync.Mutex
	joined       bool
	nickAttempts int
}

type askRequest struct {
	Prompt string `json:"prompt"`
}

type askResponse struct {
	Reply string `json:"reply"`
}

func main() {
	server := flag.String("server", envOr("HIVEBOT_SERVER", "localhost:6667"), "IRC server address")
	nick := flag.String("nick", envOr("HIVEBOT_NICK", "hivebot"), "bot nickname")
	password := flag.String("password", os.Getenv("HIVEBOT_PASSWORD"), "IRC server password")
	channels := flag.String("channels", envOr("HIVEBOT_CHANNELS", "#hive"), "comma-separated channels to join")
	askURL := flag.String("ask-url", os.Getenv("HIVEBOT_ASK_URL"), "HTTP endpoint answering !ask prompts")
	flag.Parse()

	b := &bot{
		channels: strings.Split(*channels, ","),
		askURL:   *askURL,
		http:     &http.Client{Timeout: 30 * time.Second},
	}

	b.conn = &ircevent.Connection{
		Server:        *server,
		Nick:          *nick,
		User:          *nick,
		RealName:      "IRC Hive bot",
		Password:      *password,
		QuitMessage:   "Shutting down",
		ReconnectFreq: initialBackoff,
	}

	b.conn.AddCallback("001", b.onConnect)
	b.conn.AddCallback("376", b.onConnect)
	b.conn.AddCallback("422", b.onConnect)
	b.conn.AddCallback("433", b.onNickInUse)
	b.conn.AddCallback("PRIVMSG", b.onPrivMsg)

	backoff := initialBackoff
	for {
		err := b.conn.Connect()
		if err == nil {
			break
		}
		log.Printf("connect to %s failed: %v, retrying in %s", *server, err, backoff)
		time.Sleep(backoff)
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}

	b.conn.Loop()
}

// onConnect joins the configured channels once registration completes
func (b *bot) onConnect(e ircmsg.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.joined {
		return
	}
	b.joined = true

	log.Printf("connected as %s", b.conn.CurrentNick())
	for _, ch := range b.channels {
		if ch = strings.TrimSpace(ch); ch != "" {
			b.conn.Join(ch)
		}
	}
}

// onNickInUse retries registration with a numbered nickname
func (b *bot) onNickInUse(e ircmsg.Message) {
	b.mu.Lock()
	b.nickAttempts++
	next := fmt.Sprintf("%s%d", b.conn.Nick, b.nickAttempts)
	b.mu.Unlock()

	log.Printf("nickname in use, trying %s", next)
	b.conn.SetNick(next)
}

func (b *bot) onPrivMsg(e ircmsg.Message) {
	if len(e.Params) < 2 {
		return
	}
	target, text := e.Params[0], e.Params[1]

	// Reply in the channel, or directly for private messages
	replyTo := target
	if strings.EqualFold(target, b.conn.CurrentNick()) {
		replyTo = e.Nick()
	}

	switch {
	case text == "!ping":
		b.conn.Privmsg(replyTo, "pong")
	case text == "!help":
		b.conn.Privmsg(replyTo, "commands: !ping, !help, !ask <question>")
	case strings.HasPrefix(text, "!ask "):
		prompt := strings.TrimSpace(strings.TrimPrefix(text, "!ask "))
		if prompt == "" {
			b.conn.Privmsg(replyTo, "usage: !ask <question>")
			return
		}
		go b.ask(replyTo, prompt)
	}
}

// ask forwards the prompt to the configured answer endpoint and relays the
// reply back. Runs off the event loop so a slow endpoint does not stall
// the connection.
func (b *bot) ask(replyTo, prompt string) {
	if b.askURL == "" {
		b.conn.Privmsg(replyTo, "no answer endpoint configured")
		return
	}

	body, err := json.Marshal(askRequest{Prompt: prompt})
	if err != nil {
		log.Printf("ask: encode request: %v", err)
		return
	}

	resp, err := b.http.Post(b.askURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("ask: %v", err)
		b.conn.Privmsg(replyTo, "sorry, I could not reach the answer service")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		log.Printf("ask: answer service returned %s", resp.Status)
		b.conn.Privmsg(replyTo, "sorry, the answer service had an error")
		return
	}

	var answer askResponse
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		log.Printf("ask: decode reply: %v", err)
		b.conn.Privmsg(replyTo, "sorry, I got an unreadable answer")
		return
	}

	// One line per message, IRC has no multi-line replies
	for _, line := range strings.Split(answer.Reply, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			b.conn.Privmsg(replyTo, line)
		}
	}
}

func envOr(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
