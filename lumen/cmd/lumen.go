// Command-line chat client for a running lumen server
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"lumen/lumen/config"
	"lumen/lumen/sources/psql/models"
	httputils "lumen/lumen/utils/http"
	"lumen/lumen/utils/logging"

	"go.uber.org/zap"
)

type loginResponse struct {
	Token string `json:"token"`
}

type chatResponse struct {
	Chat struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"chat"`
}

type detailResponse struct {
	Messages []models.Message `json:"messages"`
}

func main() {
	logging.InitLogger()
	cfg := config.LoadConfig()

	args := os.Args[1:]
	if len(args) < 1 || args[0] != "connect" {
		fmt.Println("Lumen CLI usage:")
		fmt.Println("  lumen connect <username>   # Open a chat session against the server")
		os.Exit(1)
	}
	username := "cli"
	if len(args) >= 2 {
		username = args[1]
	}

	base := "http://localhost" + cfg.ServerAddr
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var login loginResponse
	if err := httputils.PostJSON(ctx, base+"/auth/login",
		map[string]string{"username": username}, &login); err != nil {
		logging.ErrorLogger.Error("login failed", zap.Error(err))
		os.Exit(1)
	}

	var created chatResponse
	if err := httputils.PostJSONWithAuth(ctx, base+"/chats", login.Token,
		map[string]string{"title": "New chat"}, &created); err != nil {
		logging.ErrorLogger.Error("chat create failed", zap.Error(err))
		os.Exit(1)
	}
	chatID := created.Chat.ID

	fmt.Println("Connected. Chat:", chatID)
	fmt.Println("Type your message or 'exit' to quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("lumen> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "exit" || line == "quit" {
			fmt.Println("Goodbye!")
			break
		}
		if line == "" {
			continue
		}

		reqCtx, reqCancel := context.WithTimeout(context.Background(), 120*time.Second)
		var detail detailResponse
		err := httputils.PostJSONWithAuth(reqCtx, base+"/chats/"+chatID+"/messages", login.Token,
			map[string]any{
				"parts": []map[string]string{{"type": "text", "text": line}},
			}, &detail)
		reqCancel()
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		if len(detail.Messages) > 0 {
			last := detail.Messages[len(detail.Messages)-1]
			if last.Role == models.RoleAssistant {
				fmt.Println(last.TextContent())
			}
		}
	}
}
