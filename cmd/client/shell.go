package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/atinyakov/GophKeychain/internal/client/storage"
	"github.com/atinyakov/GophKeychain/internal/models"
	"github.com/atinyakov/GophKeychain/internal/service"
)

const helpText = `Available commands:
  add               create an item
  save              create an item or replace the one with the same key
  list [kind...]    list items
  get <id>          show an item
  delete <id>       delete an item
  clear [kind...]   delete every item of the given kinds (all when none)
  sync              synchronise with the server
  passwd            change the master password
  exit`

const unlockAttempts = 4

// shell is the interactive loop over a keychain service.
type shell struct {
	svc    *service.KeychainService
	owner  string
	syncer *storage.Syncer
	creds  *service.Credentials
	prompt *storage.Prompter
	out    io.Writer
}

func (s *shell) run(ctx context.Context) error {
	for {
		line, err := s.prompt.Ask("gophkeychain> ")
		if errors.Is(err, storage.ErrInputClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		args := strings.Fields(line)
		if len(args) == 0 {
			continue
		}
		if args[0] == "exit" {
			fmt.Fprintln(s.out, "Bye")
			return nil
		}
		if err := s.exec(ctx, args[0], args[1:]); err != nil {
			if errors.Is(err, storage.ErrInputClosed) {
				return nil
			}
			fmt.Fprintln(s.out, "Error:", err)
		}
	}
}

// unlock asks for the master password, or sets one up on first use.
func (s *shell) unlock(ctx context.Context) error {
	has, err := s.creds.HasCredentials(ctx)
	if err != nil {
		return err
	}
	if !has {
		fmt.Fprintln(s.out, "No master password is set for", s.owner)
		return s.setMasterPassword(ctx)
	}
	for i := 0; i < unlockAttempts; i++ {
		pw, err := s.prompt.Ask("Master password: ")
		if err != nil {
			return err
		}
		err = s.creds.Verify(ctx, pw)
		if err == nil {
			return nil
		}
		if !errors.Is(err, service.ErrWrongMasterPassword) {
			return err
		}
		fmt.Fprintln(s.out, "Wrong master password")
	}
	return service.ErrWrongMasterPassword
}

func (s *shell) setMasterPassword(ctx context.Context) error {
	pw, err := s.prompt.Ask("New master password: ")
	if err != nil {
		return err
	}
	repeat, err := s.prompt.Ask("Repeat master password: ")
	if err != nil {
		return err
	}
	if pw != repeat {
		return errors.New("passwords do not match")
	}
	return s.creds.SetMasterPassword(ctx, pw)
}

func (s *shell) exec(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Fprintln(s.out, helpText)
	case "add", "save":
		item, err := s.prompt.PromptForItem()
		if err != nil {
			return err
		}
		var rec models.Record
		if cmd == "add" {
			rec, err = s.svc.Add(ctx, s.owner, item)
		} else {
			rec, err = s.svc.Save(ctx, s.owner, item)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Item saved: %s\n", rec.ID())
	case "list":
		kinds, err := parseKinds(args)
		if err != nil {
			return err
		}
		recs, err := s.svc.Records(ctx, s.owner, kinds...)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
		for _, rec := range recs {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", rec.ID(), rec.Kind(), rec.Value[models.DescriptionKey])
		}
		return tw.Flush()
	case "get":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "Usage: get <id>")
			return nil
		}
		rec, err := s.svc.GetByID(ctx, s.owner, args[0])
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(s.out, string(b))
	case "delete":
		if len(args) != 1 {
			fmt.Fprintln(s.out, "Usage: delete <id>")
			return nil
		}
		if err := s.svc.DeleteByID(ctx, s.owner, args[0]); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Item deleted")
	case "clear":
		kinds, err := parseKinds(args)
		if err != nil {
			return err
		}
		n, err := s.svc.Clear(ctx, s.owner, kinds...)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "Removed %d items\n", n)
	case "sync":
		if s.syncer == nil {
			return errors.New("this backend does not sync")
		}
		if err := s.syncer.Sync(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Synced")
	case "passwd":
		pw, err := s.prompt.Ask("Current master password: ")
		if err != nil {
			return err
		}
		if err := s.creds.Verify(ctx, pw); err != nil {
			return err
		}
		if err := s.setMasterPassword(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "Master password changed")
	default:
		fmt.Fprintln(s.out, "Unknown command. Type 'help' for a list of commands.")
	}
	return nil
}

func parseKinds(args []string) ([]models.Kind, error) {
	kinds := make([]models.Kind, 0, len(args))
	for _, a := range args {
		k, err := storage.ParseKind(a)
		if err != nil {
			return nil, err
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}
