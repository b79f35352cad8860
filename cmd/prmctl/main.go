// Command prmctl signs and submits payment records to a prm server and
// reads histories back.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"payrecorder.mini/prm/internal/client"
	"payrecorder.mini/prm/internal/identity"
	"payrecorder.mini/prm/internal/types"
)

const usage = `Usage: prmctl <command> [flags]

Commands:
  keygen    create a signing key
  whoami    print the account of a signing key
  record    record a payment to a recipient
  history   list the payments recorded by an account
  me        list the payments recorded by the signing key
  version   print client and server versions

Run "prmctl <command> -h" for command flags.
`

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "prmctl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New("missing command\n\n" + usage)
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "keygen":
		return runKeygen(rest, out)
	case "whoami":
		return runWhoami(rest, out)
	case "record":
		return runRecord(rest, out)
	case "history":
		return runHistory(rest, out)
	case "me":
		return runMe(rest, out)
	case "version":
		return runVersion(rest, out)
	case "help", "-h", "--help":
		fmt.Fprint(out, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n\n%s", cmd, usage)
	}
}

func defaultKeyPath() string {
	if p := os.Getenv("PRM_KEY"); p != "" {
		return p
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "prm.key"
	}
	return filepath.Join(homeDir, ".prm", "prm.key")
}

func defaultServer() string {
	if s := os.Getenv("PRM_SERVER"); s != "" {
		return s
	}
	return client.DefaultAddr
}

// commonFlags registers the flags every network command shares.
type commonFlags struct {
	server  string
	keyPath string
	asJSON  bool
	timeout time.Duration
}

func (c *commonFlags) register(fs *flag.FlagSet, withKey bool) {
	fs.StringVar(&c.server, "server", defaultServer(), "prm server address")
	if withKey {
		fs.StringVar(&c.keyPath, "key", defaultKeyPath(), "Path to ed25519 signing key (PEM)")
	}
	fs.BoolVar(&c.asJSON, "json", false, "Print JSON instead of a table")
	fs.DurationVar(&c.timeout, "timeout", 10*time.Second, "Request timeout")
}

func (c *commonFlags) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

func loadKey(path string) (*identity.Keypair, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("signing key %s not found (run \"prmctl keygen\"): %w", path, err)
	}
	return identity.LoadOrCreateKeypair(path)
}

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	keyPath := fs.String("key", defaultKeyPath(), "Where to write the key")
	force := fs.Bool("force", false, "Overwrite an existing key")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*keyPath); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to replace it)", *keyPath)
	}
	if err := os.MkdirAll(filepath.Dir(*keyPath), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if *force {
		os.Remove(*keyPath)
	}

	kp, err := identity.LoadOrCreateKeypair(*keyPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ Key generated: %s\n", *keyPath)
	printAccount(out, kp.Account())
	return nil
}

func runWhoami(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("whoami", flag.ContinueOnError)
	keyPath := fs.String("key", defaultKeyPath(), "Path to ed25519 signing key (PEM)")
	prefix := fs.Uint("ss58-prefix", uint(identity.DefaultSS58Prefix), "SS58 network prefix")
	if err := fs.Parse(args); err != nil {
		return err
	}

	kp, err := loadKey(*keyPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "account: %s\n", kp.Account())
	fmt.Fprintf(out, "ss58:    %s\n", kp.Account().SS58(uint16(*prefix)))
	return nil
}

func printAccount(out io.Writer, id identity.AccountID) {
	fmt.Fprintf(out, "account: %s\n", id)
	fmt.Fprintf(out, "ss58:    %s\n", id.SS58(identity.DefaultSS58Prefix))
}

// parseAmount reads planck, or whole DOT when dot is set.
func parseAmount(s string, dot bool) (types.Amount, error) {
	if dot {
		return types.ParseUnits(s, types.DOTDecimals)
	}
	return types.ParseAmount(s)
}

func runRecord(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("record", flag.ContinueOnError)
	var common commonFlags
	common.register(fs, true)
	dot := fs.Bool("dot", false, "Amount is in DOT (10 decimals) rather than planck")
	checkOnly := fs.Bool("check", false, "Validate on the server without recording")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: prmctl record [flags] <recipient> <amount>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 2 {
		fs.Usage()
		return errors.New("record needs a recipient and an amount")
	}

	recipient, err := identity.ParseAccountID(fs.Arg(0))
	if err != nil {
		return err
	}
	amount, err := parseAmount(fs.Arg(1), *dot)
	if err != nil {
		return err
	}
	kp, err := loadKey(common.keyPath)
	if err != nil {
		return err
	}

	ctx, cancel := common.context()
	defer cancel()
	c := client.New(common.server)

	if *checkOnly {
		tx, err := types.NewRecordPayment(recipient, amount)
		if err != nil {
			return err
		}
		stx, err := tx.Sign(kp)
		if err != nil {
			return err
		}
		if err := c.Check(ctx, stx); err != nil {
			return err
		}
		fmt.Fprintln(out, "✓ Transaction is valid")
		return nil
	}

	ev, err := c.RecordPayment(ctx, kp, recipient, amount)
	if err != nil {
		return err
	}
	if common.asJSON {
		return writeJSON(out, ev)
	}
	fmt.Fprintf(out, "✓ Recorded %s planck to %s at %s\n", ev.Amount, ev.Recipient.SS58(identity.DefaultSS58Prefix), formatMillis(ev.Timestamp))
	return nil
}

func runHistory(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	var common commonFlags
	common.register(fs, false)
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), "Usage: prmctl history [flags] <account>")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("history needs an account")
	}

	ctx, cancel := common.context()
	defer cancel()
	history, err := client.New(common.server).History(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	return printHistory(out, history, common.asJSON)
}

func runMe(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("me", flag.ContinueOnError)
	var common commonFlags
	common.register(fs, true)
	if err := fs.Parse(args); err != nil {
		return err
	}

	kp, err := loadKey(common.keyPath)
	if err != nil {
		return err
	}
	ctx, cancel := common.context()
	defer cancel()
	history, err := client.New(common.server).MyHistory(ctx, kp)
	if err != nil {
		return err
	}
	return printHistory(out, history, common.asJSON)
}

func runVersion(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	var common commonFlags
	common.register(fs, false)
	if err := fs.Parse(args); err != nil {
		return err
	}

	fmt.Fprintf(out, "client: %s\n", types.Version)
	ctx, cancel := common.context()
	defer cancel()
	serverVer, err := client.New(common.server).CheckCompatible(ctx)
	if serverVer != "" {
		fmt.Fprintf(out, "server: %s\n", serverVer)
	}
	return err
}

func printHistory(out io.Writer, history []types.PaymentRecord, asJSON bool) error {
	if asJSON {
		return writeJSON(out, history)
	}
	if len(history) == 0 {
		fmt.Fprintln(out, "No payments recorded.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tTIME\tRECIPIENT\tAMOUNT (planck)\tDOT")
	for i, rec := range history {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, formatMillis(rec.Timestamp),
			rec.Recipient.SS58(identity.DefaultSS58Prefix), rec.Amount, rec.Amount.Decimal(types.DOTDecimals))
	}
	return w.Flush()
}

func formatMillis(ms uint64) string {
	return time.UnixMilli(int64(ms)).UTC().Format(time.RFC3339)
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
