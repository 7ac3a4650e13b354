// cmd/client is the CLI entry-point built with Cobra.
//
// Every subcommand dials the node, runs the two-phase login handshake,
// performs one operation, and exits — each invocation is its own short-
// lived session against the binary TCP protocol (spec §6).
//
// Usage:
//
//	chatcli send alice "hi there"   --addr localhost:9000 --user bob --pass secret
//	chatcli read alice              --addr localhost:9000 --user bob --pass secret
//	chatcli list-messages alice     --addr localhost:9000 --user bob --pass secret
//	chatcli list-users              --addr localhost:9000 --user bob --pass secret
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"replichat/internal/chatclient"
)

var (
	serverAddr string
	username   string
	password   string
)

func main() {
	root := &cobra.Command{
		Use:   "chatcli",
		Short: "CLI client for a replichat node",
	}

	root.PersistentFlags().StringVarP(&serverAddr, "addr", "a", "localhost:9000", "Node TCP address")
	root.PersistentFlags().StringVarP(&username, "user", "u", "", "Username")
	root.PersistentFlags().StringVarP(&password, "pass", "p", "", "Password")
	root.MarkPersistentFlagRequired("user")
	root.MarkPersistentFlagRequired("pass")

	root.AddCommand(sendCmd(), readCmd(), listMessagesCmd(), listUsersCmd(),
		deleteMessageCmd(), deleteAccountCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loggedIn() (*chatclient.Client, error) {
	c, err := chatclient.Dial(serverAddr)
	if err != nil {
		return nil, err
	}
	if _, err := c.Login(username, password); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func sendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <recipient> <content>",
		Short: "Send a message to another user",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loggedIn()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Send(args[0], args[1])
		},
	}
}

func readCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "read <sender>",
		Short: "Mark messages from sender as read",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loggedIn()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.Read(args[0])
		},
	}
}

func listMessagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-messages <friend>",
		Short: "List the conversation with friend",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loggedIn()
			if err != nil {
				return err
			}
			defer c.Close()
			msgs, err := c.ListMessages(args[0])
			if err != nil {
				return err
			}
			for _, m := range msgs {
				fmt.Printf("[%.3f] %s -> %s: %s (%s)\n", m.Timestamp, m.Sender, m.Recipient, m.Content, m.Status)
			}
			return nil
		},
	}
}

func listUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list-users",
		Short: "List known users and their unread message counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loggedIn()
			if err != nil {
				return err
			}
			defer c.Close()
			counts, err := c.ListUsers()
			if err != nil {
				return err
			}
			for user, n := range counts {
				fmt.Printf("%s: %d unread\n", user, n)
			}
			return nil
		},
	}
}

func deleteMessageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-message <id>",
		Short: "Delete a message by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loggedIn()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.DeleteMessage(args[0])
		},
	}
}

func deleteAccountCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-account",
		Short: "Delete the logged-in account and its messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := loggedIn()
			if err != nil {
				return err
			}
			defer c.Close()
			return c.DeleteAccount()
		},
	}
}
