package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/vpnda/statement-relay/pkg/models"
	"github.com/vpnda/statement-relay/pkg/utils"
)

func (r *replState) listAccounts(ctx context.Context, args []string) {
	accounts, err := r.ui.GetAccounts(ctx, forceRefresh(args))
	if err != nil {
		// nothing else works without accounts
		r.accounts = nil
		r.statements = map[string][]models.Statement{}
		r.printError("Loading accounts", err)
		return
	}
	r.accounts = accounts

	if len(accounts) == 0 {
		fmt.Fprintln(r.out, "No accounts found")
		return
	}

	fmt.Fprintf(r.out, "Found %d accounts:\n\n", len(accounts))
	fmt.Fprintf(r.out, "%-4s %-30s %-8s %-12s %15s\n", "#", "Account Name", "Mask", "Type", "Balance")
	fmt.Fprintln(r.out, strings.Repeat("-", 73))
	for i, account := range accounts {
		fmt.Fprintf(r.out, "%-4d %-30s %-8s %-12s %15s\n",
			i+1,
			utils.Truncate(account.AccountName, 30),
			account.AccountMask,
			account.AccountType,
			account.Balance.Display())
	}
}

func (r *replState) account(arg string) (models.Account, bool) {
	if len(r.accounts) == 0 {
		fmt.Fprintln(r.out, "No accounts loaded, run 'accounts' first")
		return models.Account{}, false
	}
	i, err := parseIndex(arg, len(r.accounts))
	if err != nil {
		fmt.Fprintln(r.out, err)
		return models.Account{}, false
	}
	return r.accounts[i], true
}

func (r *replState) listStatements(ctx context.Context, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(r.out, "Usage: statements <account #> [-f]")
		return
	}
	account, ok := r.account(args[0])
	if !ok {
		return
	}

	statements, err := r.ui.GetStatements(ctx, account, forceRefresh(args[1:]))
	if err != nil {
		r.printError("Loading statements", err)
		return
	}
	r.statements[account.AccountID] = statements

	if len(statements) == 0 {
		fmt.Fprintf(r.out, "No statements found for %s\n", account.AccountName)
		return
	}

	fmt.Fprintf(r.out, "Found %d statements for %s:\n\n", len(statements), account.AccountName)
	for i, st := range statements {
		fmt.Fprintf(r.out, "%-4d %s\n", i+1, st.StatementDate)
	}
}

func (r *replState) downloadStatement(ctx context.Context, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(r.out, "Usage: download <account #> <statement #>")
		return
	}
	account, ok := r.account(args[0])
	if !ok {
		return
	}
	statements, ok := r.statements[account.AccountID]
	if !ok {
		fmt.Fprintf(r.out, "No statements loaded, run 'statements %s' first\n", args[0])
		return
	}
	i, err := parseIndex(args[1], len(statements))
	if err != nil {
		fmt.Fprintln(r.out, err)
		return
	}
	statement := statements[i]

	content, err := r.ui.DownloadStatement(ctx, statement)
	if err != nil {
		r.printError("Download", err)
		return
	}

	path := filepath.Join(r.dir, statementFileName(statement))
	if err := writeNewFile(path, content); err != nil {
		if errors.Is(err, fs.ErrExist) {
			fmt.Fprintf(r.out, "%s already exists, not overwriting\n", path)
			return
		}
		log.Error().Err(err).Str("path", path).Msg("Error saving statement")
		return
	}
	fmt.Fprintf(r.out, "Saved %s (%d bytes)\n", path, len(content))
}

func statementFileName(st models.Statement) string {
	name := strings.Join(lo.Compact([]string{
		string(st.Account.AccountType),
		st.Account.AccountMask,
		st.StatementDate,
		st.StatementID,
	}), "-")
	name = strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == ' ' {
			return '_'
		}
		return r
	}, name)
	return name + ".pdf"
}

// writeNewFile fails with fs.ErrExist rather than replacing an earlier download
func writeNewFile(path string, content []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	if _, err := f.Write(content); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
