package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jmcleod/lockbox/vault"
)

var entryCmd = &cobra.Command{
	Use:     "entry",
	Aliases: []string{"entries"},
	Short:   "Manage vault entries",
}

var entryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add an entry",
	Long: `Add an entry to the vault. The entry password is prompted for with echo
disabled unless --password-env names an environment variable holding it.`,
	Args: cobra.NoArgs,
	RunE: runEntryAdd,
}

var entryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List entries in insertion order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEntrySearch(cmd, nil)
	},
}

var entrySearchCmd = &cobra.Command{
	Use:   "search TERM",
	Short: "Find entries whose title, username or tags contain TERM",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntrySearch,
}

var entryGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one entry",
	Args:  cobra.ExactArgs(1),
	RunE:  runEntryGet,
}

var entryUpdateCmd = &cobra.Command{
	Use:   "update ID",
	Short: "Change fields of an entry",
	Long: `Change fields of an entry. Only the flags given are applied; use
--password to be prompted for a new password.`,
	Args: cobra.ExactArgs(1),
	RunE: runEntryUpdate,
}

var entryRemoveCmd = &cobra.Command{
	Use:     "remove ID",
	Aliases: []string{"rm"},
	Short:   "Remove an entry",
	Args:    cobra.ExactArgs(1),
	RunE:    runEntryRemove,
}

var (
	entryTitle       string
	entryUsername    string
	entryTags        []string
	entryPasswordEnv string
	entryNewPassword bool
	entryShow        bool
	entryJSON        bool
)

func init() {
	entryAddCmd.Flags().StringVar(&entryTitle, "title", "", "Entry title (required)")
	entryAddCmd.Flags().StringVar(&entryUsername, "username", "", "Username (required)")
	entryAddCmd.Flags().StringSliceVar(&entryTags, "tag", nil, "Tag, may be repeated or comma separated")
	entryAddCmd.Flags().StringVar(&entryPasswordEnv, "password-env", "", "Read the entry password from this environment variable")
	entryAddCmd.MarkFlagRequired("title")
	entryAddCmd.MarkFlagRequired("username")

	entryUpdateCmd.Flags().StringVar(&entryTitle, "title", "", "New title")
	entryUpdateCmd.Flags().StringVar(&entryUsername, "username", "", "New username")
	entryUpdateCmd.Flags().StringSliceVar(&entryTags, "tag", nil, "Replace tags")
	entryUpdateCmd.Flags().BoolVar(&entryNewPassword, "password", false, "Prompt for a new password")
	entryUpdateCmd.Flags().StringVar(&entryPasswordEnv, "password-env", "", "Read the new password from this environment variable")

	entryGetCmd.Flags().BoolVar(&entryShow, "show", false, "Print the password")
	for _, c := range []*cobra.Command{entryListCmd, entrySearchCmd, entryGetCmd} {
		c.Flags().BoolVar(&entryJSON, "json", false, "Print JSON")
	}

	entryCmd.AddCommand(entryAddCmd, entryListCmd, entrySearchCmd, entryGetCmd, entryUpdateCmd, entryRemoveCmd)
	rootCmd.AddCommand(entryCmd)
}

// unlocked opens the configured vault, unlocks it with the master
// passphrase and runs fn against the session.
func unlocked(cmd *cobra.Command, fn func(*vault.Session) error) error {
	return unlockedEnv(cmd, func(_ *env, s *vault.Session) error { return fn(s) })
}

func unlockedEnv(cmd *cobra.Command, fn func(*env, *vault.Session) error) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx, "cli")
	if err != nil {
		return err
	}
	defer e.close()

	prompt := func() (string, error) {
		return passphrase(cmd.ErrOrStderr(), "Master passphrase", envPassphrase)
	}
	return withSession(ctx, e, prompt, func(s *vault.Session) error { return fn(e, s) })
}

func entryPassword(cmd *cobra.Command, prompt string) (string, error) {
	if entryPasswordEnv != "" {
		v := os.Getenv(entryPasswordEnv)
		if v == "" {
			return "", fmt.Errorf("environment variable %s is not set or empty", entryPasswordEnv)
		}
		return v, nil
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "%s (input hidden): ", prompt)
	b, err := readPassword()
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("reading entry password: %w", err)
	}
	return string(b), nil
}

func runEntryAdd(cmd *cobra.Command, args []string) error {
	return unlocked(cmd, func(s *vault.Session) error {
		password, err := entryPassword(cmd, "Entry password")
		if err != nil {
			return err
		}
		rec, err := s.Add(cmd.Context(), vault.NewRecord{
			Title:    entryTitle,
			Username: entryUsername,
			Password: password,
			Tags:     entryTags,
		})
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Entry added: %s", rec.ID)
		return nil
	})
}

func runEntrySearch(cmd *cobra.Command, args []string) error {
	var term string
	if len(args) > 0 {
		term = args[0]
	}
	return unlocked(cmd, func(s *vault.Session) error {
		records, err := s.Search(cmd.Context(), term)
		if err != nil {
			return err
		}
		if entryJSON {
			return printJSON(cmd.OutOrStdout(), redact(records))
		}
		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No entries found")
			return nil
		}
		return printRecords(cmd.OutOrStdout(), records)
	})
}

func runEntryGet(cmd *cobra.Command, args []string) error {
	return unlocked(cmd, func(s *vault.Session) error {
		rec, err := s.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !entryShow {
			rec.Password = redacted
		}
		if entryJSON {
			return printJSON(cmd.OutOrStdout(), rec)
		}
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "ID:       %s\n", rec.ID)
		fmt.Fprintf(w, "Title:    %s\n", rec.Title)
		fmt.Fprintf(w, "Username: %s\n", rec.Username)
		fmt.Fprintf(w, "Password: %s\n", rec.Password)
		fmt.Fprintf(w, "Tags:     %s\n", strings.Join(rec.Tags, ", "))
		return nil
	})
}

func runEntryUpdate(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	var u vault.RecordUpdate
	if flags.Changed("title") {
		u.Title = &entryTitle
	}
	if flags.Changed("username") {
		u.Username = &entryUsername
	}
	if flags.Changed("tag") {
		u.Tags = &entryTags
	}
	wantPassword := entryNewPassword || flags.Changed("password-env")

	return unlocked(cmd, func(s *vault.Session) error {
		if wantPassword {
			password, err := entryPassword(cmd, "New password")
			if err != nil {
				return err
			}
			u.Password = &password
		}
		rec, err := s.Update(cmd.Context(), args[0], u)
		if err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Entry updated: %s", rec.ID)
		return nil
	})
}

func runEntryRemove(cmd *cobra.Command, args []string) error {
	return unlocked(cmd, func(s *vault.Session) error {
		if err := s.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Entry removed: %s", args[0])
		return nil
	})
}

const redacted = "********"

func redact(records []vault.Record) []vault.Record {
	for i := range records {
		records[i].Password = redacted
	}
	return records
}

func printRecords(w io.Writer, records []vault.Record) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tUSERNAME\tTAGS")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Title, r.Username, strings.Join(r.Tags, ","))
	}
	return tw.Flush()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
