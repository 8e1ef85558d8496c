// Command client is a terminal chat client for the relay: it joins one
// room, prints the live broadcast stream, and sends what you type.
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/fasthttp/websocket"
	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

type envelope struct {
	MsgType  string `json:"msg_type"`
	Message  string `json:"message,omitempty"`
	UserID   string `json:"user_id,omitempty"`
	Username string `json:"username,omitempty"`
	Lang     string `json:"lang,omitempty"`
}

type outbound struct {
	MsgType   string  `json:"msg_type"`
	Message   *string `json:"message"`
	UserID    *string `json:"user_id"`
	Username  *string `json:"username"`
	Lang      *string `json:"lang"`
	Timestamp *string `json:"timestamp"`
}

type historyPage struct {
	Messages []struct {
		ID        string `json:"id"`
		AuthorID  string `json:"author_id"`
		Content   string `json:"content"`
		Lang      string `json:"lang"`
		Timestamp string `json:"timestamp"`
	} `json:"messages"`
	NextCursor *string `json:"next_cursor"`
}

func main() {
	server := flag.String("server", "localhost:8080", "relay host:port")
	room := flag.String("room", "lobby", "room to join")
	username := flag.String("username", "", "chat username (required)")
	userID := flag.String("user-id", "", "reuse an existing user id")
	lang := flag.String("lang", "", "two letter language code")
	token := flag.String("token", "", "bearer token from /api/auth/login")
	history := flag.Bool("history", true, "print the latest history page before joining")
	flag.Parse()

	if *username == "" && *userID == "" {
		log.Fatal("either -username or -user-id is required")
	}

	if *history {
		printHistory(*server, *room, *token)
	}

	wsURL := url.URL{Scheme: "ws", Host: *server, Path: "/ws/chat/" + *room}
	if *token != "" {
		wsURL.RawQuery = "token=" + url.QueryEscape(*token)
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer conn.Close()

	join := envelope{MsgType: "joined", UserID: *userID, Username: *username, Lang: *lang}
	if err := conn.WriteJSON(join); err != nil {
		log.Fatalf("join failed: %v", err)
	}
	color.New(color.FgGreen).Printf("Joined room %s as %s\n", *room, *username)

	// The server assigns the user id on join; the read loop captures it
	// from the first matching join broadcast so messages can carry it.
	identity := &identity{id: *userID}

	done := make(chan struct{})
	go readLoop(conn, done, identity, *username)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/leave" {
			_ = conn.WriteJSON(envelope{MsgType: "leave", UserID: identity.get(), Username: *username})
			break
		}
		post := envelope{MsgType: "message", Message: line, UserID: identity.get(), Username: *username, Lang: *lang}
		if err := conn.WriteJSON(post); err != nil {
			color.New(color.FgRed).Printf("send failed: %v\n", err)
			break
		}
	}

	_ = conn.Close()
	<-done
}

type identity struct {
	mu sync.Mutex
	id string
}

func (i *identity) get() string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.id
}

func (i *identity) bind(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.id == "" {
		i.id = id
	}
}

// readLoop prints every broadcast frame until the connection drops.
func readLoop(conn *websocket.Conn, done chan<- struct{}, identity *identity, username string) {
	defer close(done)
	for {
		var out outbound
		if err := conn.ReadJSON(&out); err != nil {
			return
		}
		if out.MsgType == "joined" && deref(out.Username) == username && out.UserID != nil {
			identity.bind(*out.UserID)
		}
		printFrame(out)
	}
}

func printFrame(out outbound) {
	name := deref(out.Username)
	if name == "" {
		name = deref(out.UserID)
	}
	switch out.MsgType {
	case "joined":
		color.New(color.FgCyan).Printf("* %s joined\n", name)
	case "leave":
		color.New(color.FgYellow).Printf("* %s left\n", name)
	case "message":
		header := color.New(color.BgBlack, color.FgGreen).Render(name)
		fmt.Printf("%s %s\n", header, deref(out.Message))
	default:
		color.New(color.FgDarkGray).Printf("? %s\n", out.MsgType)
	}
}

// printHistory fetches the newest page of the room's persisted messages
// and renders it as a table.
func printHistory(server, room, token string) {
	endpoint := fmt.Sprintf("http://%s/api/rooms/%s/messages", server, url.PathEscape(room))
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		log.Fatalf("history request failed: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		color.New(color.FgYellow).Printf("history unavailable: %v\n", err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		color.New(color.FgYellow).Printf("history unavailable: HTTP %d\n", resp.StatusCode)
		return
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		color.New(color.FgYellow).Printf("history unreadable: %v\n", err)
		return
	}
	var page historyPage
	if err := json.Unmarshal(body, &page); err != nil {
		color.New(color.FgYellow).Printf("history unreadable: %v\n", err)
		return
	}
	if len(page.Messages) == 0 {
		return
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Timestamp", "Author", "Lang", "Message"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	// Newest first on the wire, oldest first on screen.
	for i := len(page.Messages) - 1; i >= 0; i-- {
		m := page.Messages[i]
		table.Append([]string{m.Timestamp, m.AuthorID, m.Lang, m.Content})
	}
	table.Render()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
