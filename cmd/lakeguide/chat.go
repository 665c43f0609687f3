// This file implements the interactive chat loop: a plain line-based REPL
// that renders structured responses and lets the user press buttons by
// typing their tokens.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"lakeguide/internal/types"
)

// styles for terminal output
var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("36"))
	guideStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("36"))
	buttonStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("33")).Underline(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	debugStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))
	promptStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
)

// localUserID identifies the single CLI user in the context store.
const localUserID = "local"

func runChat(ctx context.Context) error {
	a, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer a.closer()

	fmt.Println(titleStyle.Render(fmt.Sprintf("%s %s", a.cfg.Name, Version)))
	fmt.Println(mutedStyle.Render("Ask about Baikal species and places. /help for commands, /quit to exit."))
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			if done := a.runSlashCommand(ctx, line); done {
				break
			}
			continue
		}

		var responses []types.StructuredResponse
		if looksLikeCallback(line) {
			responses = a.engine.HandleCallback(ctx, localUserID, line)
		} else {
			responses = a.engine.HandleMessage(ctx, localUserID, line)
		}
		renderResponses(responses)

		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

// runSlashCommand handles local commands that never reach the pipeline.
// Returns true when the loop should exit.
func (a *app) runSlashCommand(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Println(mutedStyle.Render("/debug on|off   toggle diagnostic responses"))
		fmt.Println(mutedStyle.Render("/qa on|off      opt in to the general Q&A fallback"))
		fmt.Println(mutedStyle.Render("/reset          forget the current conversation"))
		fmt.Println(mutedStyle.Render("/quit           exit"))
	case "debug":
		s := a.store.Settings(ctx, localUserID)
		s.Debug = arg != "off"
		a.store.SaveSettings(ctx, localUserID, s)
		fmt.Println(mutedStyle.Render(fmt.Sprintf("debug mode: %v", s.Debug)))
	case "qa":
		s := a.store.Settings(ctx, localUserID)
		s.QAOptIn = arg != "off"
		a.store.SaveSettings(ctx, localUserID, s)
		fmt.Println(mutedStyle.Render(fmt.Sprintf("q&a fallback opt-in: %v", s.QAOptIn)))
	case "reset":
		a.store.ClearTurn(ctx, localUserID)
		a.store.ClearDisambiguation(ctx, localUserID)
		a.store.ClearFallbackAttrs(ctx, localUserID)
		a.store.ClearCompare(ctx, localUserID)
		fmt.Println(mutedStyle.Render("conversation forgotten"))
	default:
		fmt.Println(mutedStyle.Render("unknown command, try /help"))
	}
	return false
}

// looksLikeCallback reports whether the input is a button token rather
// than a question. Validation proper happens in the dispatcher.
func looksLikeCallback(line string) bool {
	if _, err := types.DecodeCallback(line); err == nil {
		return true
	}
	return false
}

// renderResponses prints structured responses the way a chat channel
// would: text bodies, image and map references, and button rows with the
// token to type for each.
func renderResponses(responses []types.StructuredResponse) {
	for _, r := range responses {
		switch r.Type {
		case types.ResponseText, types.ResponseClarification:
			fmt.Println(guideStyle.Render(r.Content))
		case types.ResponseImage, types.ResponseFile:
			fmt.Println(guideStyle.Render("[image] " + r.Content))
		case types.ResponseMap, types.ResponseClarificationMap:
			fmt.Println(guideStyle.Render(r.Content))
			fmt.Println(mutedStyle.Render("map: " + r.StaticMap))
			fmt.Println(mutedStyle.Render("interactive: " + r.InteractiveMap))
		case types.ResponseDebug:
			fmt.Println(debugStyle.Render("debug: " + r.DebugInfo))
			continue
		}
		for _, row := range r.Buttons {
			parts := make([]string, 0, len(row))
			for _, b := range row {
				parts = append(parts, buttonStyle.Render(fmt.Sprintf("[%s] %s", b.CallbackData, b.Text)))
			}
			fmt.Println("  " + strings.Join(parts, "  "))
		}
	}
	fmt.Println()
}
