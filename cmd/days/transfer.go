package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"days/internal/ics"
	"days/internal/storage"
)

func newExportCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write all events as an iCalendar file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, closer, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeQuietly(closer)

			records, err := s.Load(cmd.Context())
			if err != nil {
				return err
			}
			body := ics.Export(records, a.loc)
			if out == "" || out == "-" {
				_, err := io.WriteString(a.out, body)
				return err
			}
			return storage.WriteFileAtomic(out, []byte(body), 0o644)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var feedURL string
	cmd := &cobra.Command{
		Use:   "import [FILE]",
		Short: "Add events from an iCalendar file, stdin (-) or URL",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if feedURL == "" && len(args) == 0 {
				return errors.New("give a file, - for stdin, or --url")
			}

			s, st, err := a.openStore()
			if err != nil {
				return err
			}
			defer closeQuietly(st)

			var body []byte
			switch {
			case feedURL != "":
				// The fetch cache lives in the same storage as the events.
				res, err := ics.NewFetcher(st).Fetch(cmd.Context(), feedURL)
				if err != nil {
					return err
				}
				body = res.Body
			case args[0] == "-":
				body, err = io.ReadAll(cmd.InOrStdin())
			default:
				body, err = os.ReadFile(args[0])
			}
			if err != nil {
				return err
			}

			inputs, err := ics.Import(body, a.loc)
			if err != nil {
				return err
			}
			added, err := s.Import(cmd.Context(), inputs)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "imported %d events\n", len(added))
			return nil
		},
	}
	cmd.Flags().StringVar(&feedURL, "url", "", "Fetch the calendar from an http(s) URL")
	return cmd
}
