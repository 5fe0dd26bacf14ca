package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/ordercopilot/lattice"
	"github.com/ordercopilot/lattice/internal/presentation/tui"
	"github.com/ordercopilot/lattice/pkg/domain"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long:  `Runs the conversation engine in an interactive terminal session. Type "exit" or "quit" to leave.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			fmt.Printf("Error loading config: %v\n", err)
			os.Exit(1)
		}

		app, err := lattice.New(cmd.Context(), cfg)
		if err != nil {
			fmt.Printf("Error initializing lattice: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = app.Close(cmd.Context()) }()

		conversationID, _ := cmd.Flags().GetString("conversation")
		if conversationID == "" {
			conversationID = uuid.NewString()
		}

		interactive := term.IsTerminal(int(os.Stdout.Fd()))
		render := func(s string) string { return s }
		if interactive {
			tui.PrintBanner()
			fmt.Printf("Conversation: %s\n", conversationID)
			fmt.Println(`Ask about orders, tracking, refunds, or policies. Type "exit" to leave.`)
			render = tui.NewRenderer()
		}

		scanner := bufio.NewScanner(os.Stdin)
		for {
			if interactive {
				fmt.Print("> ")
			}
			if !scanner.Scan() {
				break
			}
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			if line == "exit" || line == "quit" {
				break
			}

			resp, err := app.Executor.Step(cmd.Context(), domain.TurnRequest{
				ConversationID: conversationID,
				Channel:        "cli",
				Message:        line,
			})
			if err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			fmt.Println(render(resp.Response))
		}
		if err := scanner.Err(); err != nil {
			fmt.Printf("Input error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("conversation", "s", "", "Conversation id to resume (default: new)")
}
