package cmd

import (
	"encoding/json"
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/hitfetch/packages/auth/credentials"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage stored credentials",
	Long: `Manage the bearer credentials stored per host in the session.

Examples:
  hitfetch token set https://api.example.com --access T1 --refresh R1 --refresh-url https://api.example.com/oauth/token
  hitfetch token get https://api.example.com
  hitfetch token list
  hitfetch token delete https://api.example.com`,
}

var (
	tokenAccessFlag          string
	tokenRefreshFlag         string
	tokenRefreshURLFlag      string
	tokenTypeFlag            string
	tokenAuthenticateURLFlag string
	tokenShowFlag            bool
)

var tokenSetCmd = &cobra.Command{
	Use:   "set <authentication-url>",
	Short: "Store credentials for the URL's host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if tokenAccessFlag == "" {
			return withExitCode(ExitUsageError, fmt.Errorf("--access is required"))
		}
		return withSession(func(s *session) error {
			rec := &credentials.Record{
				AuthenticationURL: args[0],
				AuthenticateURL:   tokenAuthenticateURLFlag,
				RefreshURL:        tokenRefreshURLFlag,
				AccessToken:       tokenAccessFlag,
				RefreshToken:      tokenRefreshFlag,
				TokenType:         tokenTypeFlag,
			}
			if err := s.store.Set(rec); err != nil {
				return withExitCode(ExitUsageError, err)
			}
			host, _ := credentials.HostOf(args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Stored credentials for %s\n", host)
			return nil
		})
	},
}

var tokenGetCmd = &cobra.Command{
	Use:   "get <url>",
	Short: "Print the credentials stored for the URL's host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := credentials.HostOf(args[0])
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		return withSession(func(s *session) error {
			rec := s.store.Get(host)
			if rec == nil {
				return withExitCode(ExitRequestFailure, fmt.Errorf("no credentials stored for %s", host))
			}
			if !tokenShowFlag {
				rec.AccessToken = mask(rec.AccessToken)
				rec.RefreshToken = mask(rec.RefreshToken)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		})
	},
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete <url>",
	Short: "Remove the credentials stored for the URL's host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		host, err := credentials.HostOf(args[0])
		if err != nil {
			return withExitCode(ExitUsageError, err)
		}
		return withSession(func(s *session) error {
			if err := s.store.Delete(host); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted credentials for %s\n", host)
			return nil
		})
	},
}

var tokenWipeCmd = &cobra.Command{
	Use:   "wipe",
	Short: "Remove all stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			n := s.store.Count()
			if err := s.store.Wipe(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d credential(s)\n", n)
			return nil
		})
	},
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List hosts with stored credentials",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(s *session) error {
			type row struct {
				host string
				rec  *credentials.Record
			}
			var rows []row
			for key, rec := range s.store.Snapshot() {
				host, err := credentials.HostFromKey(key)
				if err != nil {
					continue
				}
				rows = append(rows, row{host, rec})
			}
			sort.Slice(rows, func(i, j int) bool { return rows[i].host < rows[j].host })

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "HOST\tTYPE\tREFRESH\tID")
			for _, r := range rows {
				refresh := "no"
				if r.rec.CanRefresh() {
					refresh = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.host, r.rec.Type(), refresh, r.rec.ID)
			}
			return w.Flush()
		})
	},
}

func init() {
	tokenSetCmd.Flags().StringVar(&tokenAccessFlag, "access", "", "Access token")
	tokenSetCmd.Flags().StringVar(&tokenRefreshFlag, "refresh", "", "Refresh token")
	tokenSetCmd.Flags().StringVar(&tokenRefreshURLFlag, "refresh-url", "", "Token refresh endpoint")
	tokenSetCmd.Flags().StringVar(&tokenTypeFlag, "type", "", "Token type (default Bearer)")
	tokenSetCmd.Flags().StringVar(&tokenAuthenticateURLFlag, "authenticate-url", "", "Login endpoint, kept for reference")
	tokenGetCmd.Flags().BoolVar(&tokenShowFlag, "show", false, "Print tokens unmasked")

	tokenCmd.AddCommand(tokenSetCmd, tokenGetCmd, tokenDeleteCmd, tokenWipeCmd, tokenListCmd)
}

// mask keeps the first four characters of a token.
func mask(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 4 {
		return "****"
	}
	return token[:4] + "****"
}

// withSession opens the session, runs fn and closes the session.
func withSession(fn func(*session) error) error {
	s, err := currentSession()
	if err != nil {
		return err
	}
	runErr := fn(s)
	if err := s.Close(); err != nil && runErr == nil {
		return err
	}
	return runErr
}
