package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"tabayyan/internal/service"
)

var chatContextTurns int

var chatCmd = &cobra.Command{
	Use:   "chat [pregunta]",
	Short: "Pregunta al asistente legal",
	Long: `Sin argumentos abre una conversacion interactiva (salir con "exit").
Con argumento envia una sola pregunta.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().IntVar(&chatContextTurns, "context", -1, "turnos previos enviados como contexto (-1 = HISTORY_CONTEXT_TURNS)")
}

func runChat(cmd *cobra.Command, args []string) error {
	e, err := loadEnv()
	if err != nil {
		return err
	}
	turns := e.cfg.HistoryContextTurns
	if chatContextTurns >= 0 {
		turns = chatContextTurns
	}
	history := service.NewMemoryHistoryStore(e.cfg.HistoryMaxEntries, 0)
	assistant := service.NewAssistantService(e.llmClient(), history, e.logger, e.metrics, turns)
	sessionID := uuid.NewString()
	ctx := context.Background()
	out := cmd.OutOrStdout()

	if len(args) > 0 {
		reply, err := assistant.Ask(ctx, sessionID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply)
		return nil
	}

	reader := bufio.NewReader(os.Stdin)
	for {
		fmt.Fprint(out, "> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit", "خروج":
			return nil
		}
		reply, err := assistant.Ask(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			continue
		}
		fmt.Fprintf(out, "%s\n\n", reply)
	}
}
