package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var (
	chatSession string
	chatStream  bool
)

var chatCmd = &cobra.Command{
	Use:   "chat <question>",
	Short: "Ask the census assistant a question",
	Long:  "Answers a question about the loaded census data. Pass --session to continue an earlier conversation.",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "chat", envOptions{store: true, chat: true})
		if err != nil {
			return err
		}
		defer closeEnv(env)
		if env.Chat == nil {
			return eris.New("chat: anthropic.key is required")
		}

		sessionID := chatSession
		if sessionID == "" {
			sess, err := env.Chat.CreateSession(ctx)
			if err != nil {
				return err
			}
			sessionID = sess.ID
		}

		question := strings.Join(args, " ")
		if chatStream {
			reply, err := env.Chat.AskStream(ctx, sessionID, question, func(text string) error {
				_, err := fmt.Fprint(os.Stdout, text)
				return err
			})
			if err != nil {
				return err
			}
			fmt.Println()
			fmt.Fprintf(os.Stderr, "\nsession: %s\n", reply.SessionID)
			return nil
		}

		reply, err := env.Chat.Ask(ctx, sessionID, question)
		if err != nil {
			return err
		}

		fmt.Println(reply.Answer)
		fmt.Fprintf(os.Stderr, "\nsession: %s\n", reply.SessionID)
		return nil
	},
}

func init() {
	chatCmd.Flags().StringVar(&chatSession, "session", "", "continue an existing session")
	chatCmd.Flags().BoolVar(&chatStream, "stream", false, "print the answer as it is generated")
	rootCmd.AddCommand(chatCmd)
}
