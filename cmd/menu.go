package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func runMenu(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	return a.menu(ctx, bufio.NewReader(cmd.InOrStdin()))
}

// menu shows the main menu until the operator exits or input ends.
func (a *app) menu(ctx context.Context, in *bufio.Reader) error {
	for {
		fmt.Fprintln(a.out, "\n=== Face Authentication System ===")
		fmt.Fprintln(a.out, "1. Register New User")
		fmt.Fprintln(a.out, "2. Login")
		fmt.Fprintln(a.out, "3. Exit")
		fmt.Fprintln(a.out, "4. Ban User")

		choice, err := readLine(a.out, in, "Enter your choice (1-4): ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if choice == "3" {
			fmt.Fprintln(a.out, "Goodbye!")
			return nil
		}
		a.menuStep(ctx, in, choice)
	}
}

// menuStep runs one menu action. Errors and panics are reported and the menu goes on.
func (a *app) menuStep(ctx context.Context, in *bufio.Reader, choice string) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("menu action panicked", "choice", choice, "panic", r)
			fmt.Fprintf(a.out, "An error occurred: %v\n", r)
		}
	}()

	var err error
	switch choice {
	case "1":
		err = a.registerPrompt(ctx, in)
	case "2":
		_, err = a.login(ctx)
	case "4":
		err = a.banPrompt(ctx, in)
	default:
		fmt.Fprintln(a.out, "Invalid choice. Please try again.")
	}
	if err != nil {
		a.log.Debug("menu action failed", "choice", choice, "error", err)
		a.report(err)
	}
}

func (a *app) registerPrompt(ctx context.Context, in *bufio.Reader) error {
	username, err := readLine(a.out, in, "Enter username: ")
	if err != nil {
		return err
	}
	return a.register(ctx, username)
}

// banPrompt lists the active users and bans the one picked by number.
func (a *app) banPrompt(ctx context.Context, in *bufio.Reader) error {
	b := a.banner()
	users, err := b.List(ctx)
	if err != nil {
		return err
	}
	if len(users) == 0 {
		fmt.Fprintln(a.out, "No users registered.")
		return nil
	}

	fmt.Fprintln(a.out, "\nRegistered users:")
	for i, u := range users {
		fmt.Fprintf(a.out, "%d. %s\n", i+1, u)
	}
	selection, err := readLine(a.out, in, "Enter the number of the user to ban: ")
	if err != nil {
		return err
	}

	rec, err := b.BanSelection(ctx, selection)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "User %s has been banned.\n", rec.Username)
	return nil
}

// readLine writes prompt to out and returns the next trimmed input line.
func readLine(out io.Writer, in *bufio.Reader, prompt string) (string, error) {
	fmt.Fprint(out, prompt)
	line, err := in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
