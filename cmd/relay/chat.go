package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sandevgo/tuskrelay/internal/transport/cli"
	"github.com/sandevgo/tuskrelay/pkg/log"
	"github.com/sandevgo/tuskrelay/pkg/srv"
	"github.com/spf13/cobra"
)

var (
	chatConversation string
	chatThinking     bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the agent from the terminal",
	Long:  `Runs turns through the same relay as the HTTP API. Conversations are stored and show up in /chat/conversations.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		st := NewStack(ctx)
		defer srv.ShutdownServices(ctx, st.Closers)
		defer stop()

		rl, err := cli.NewReadLine(st.Relay, cli.Options{
			RuntimePath:    st.App.GetRuntimePath(),
			ConversationID: chatConversation,
			ShowThinking:   chatThinking,
		})
		if err != nil {
			return err
		}
		defer rl.Shutdown(ctx)

		if err := rl.Start(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		if id := rl.ConversationID(); id != "" {
			log.FromCtx(ctx).Info().Str("conversation_id", id).Msg("resume with: relay chat --conversation " + id)
		}
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatConversation, "conversation", "", "continue an existing conversation")
	chatCmd.Flags().BoolVar(&chatThinking, "thinking", false, "print the model's thinking")
	rootCmd.AddCommand(chatCmd)
}
