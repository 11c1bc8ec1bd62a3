// mfctl служебные команды: пересчет рейтингов и статусов, калькулятор,
// обращение к работающему серверу.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"microfinance/apiclient"
	"microfinance/cache"
	"microfinance/config"
	"microfinance/database"
	"microfinance/loanmath"
	"microfinance/scoring"
	"microfinance/services"
)

const dateLayout = "2006-01-02"

// openDB подключение к базе, подменяется в тестах
var openDB = func(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = database.Close(db) }, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		// cobra уже напечатал ошибку
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "mfctl",
		Short:        "Maintenance tool for the microfinance service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("loading .env: %w", err)
			}
			return nil
		},
	}

	root.AddCommand(
		newBackfillCmd(),
		newRefreshCmd(),
		newQuoteCmd(),
		newRemoteCmd(),
	)
	return root
}

func newBackfillCmd() *cobra.Command {
	var (
		seed        int64
		onlyMissing bool
	)
	cmd := &cobra.Command{
		Use:   "backfill-ratings",
		Short: "Assign synthetic credit ratings to borrowers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, closeDB, err := connect()
			if err != nil {
				return err
			}
			defer closeDB()

			var jitter scoring.Jitter = scoring.NoJitter{}
			if cmd.Flags().Changed("seed") {
				jitter = scoring.NewRandJitter(seed)
			}

			res, err := services.NewRatingService(db).Backfill(cmd.Context(), jitter, onlyMissing)
			if err != nil {
				return fmt.Errorf("backfill: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scored: %d, skipped: %d\n", res.Scored, res.Skipped)
			return nil
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", 0, "Seed for score jitter; without it scores are deterministic")
	cmd.Flags().BoolVar(&onlyMissing, "only-missing", false, "Skip borrowers that already have a rating")
	return cmd
}

func newRefreshCmd() *cobra.Command {
	var asOf string
	cmd := &cobra.Command{
		Use:   "refresh-statuses",
		Short: "Recalculate overdue statuses of active loans once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			when := time.Now().UTC()
			if asOf != "" {
				t, err := time.Parse(dateLayout, asOf)
				if err != nil {
					return fmt.Errorf("invalid --as-of %q: expected YYYY-MM-DD", asOf)
				}
				when = t
			}

			db, closeDB, err := connect()
			if err != nil {
				return err
			}
			defer closeDB()

			res, err := services.NewLoanService(db, nil, nil).RefreshStatuses(cmd.Context(), when)
			if err != nil {
				return fmt.Errorf("refresh statuses: %w", err)
			}
			invalidateReport(cmd.Context(), db)
			fmt.Fprintf(cmd.OutOrStdout(), "checked: %d, overdue: %d, restored: %d, closed: %d\n",
				res.Checked, res.MarkedOverdue, res.Restored, res.Closed)
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "Evaluation date YYYY-MM-DD (default today)")
	return cmd
}

type quoteFlags struct {
	amount float64
	term   int
	rate   float64
}

func (f quoteFlags) request(cmd *cobra.Command) services.QuoteRequest {
	req := services.QuoteRequest{Amount: f.amount, TermMonths: f.term}
	if cmd.Flags().Changed("rate") {
		rate := f.rate
		req.Rate = &rate
	}
	return req
}

func addQuoteFlags(cmd *cobra.Command, f *quoteFlags) {
	cmd.Flags().Float64Var(&f.amount, "amount", 0, "Principal amount")
	cmd.Flags().IntVar(&f.term, "term", 0, "Term in months")
	cmd.Flags().Float64Var(&f.rate, "rate", 0, "Monthly rate as a fraction; tier rate when omitted")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("term")
}

func newQuoteCmd() *cobra.Command {
	var flags quoteFlags
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Calculate a loan quote and repayment schedule offline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			calc := services.NewCalculatorService(cache.NewMemory(), time.Minute)
			res, err := calc.Quote(cmd.Context(), flags.request(cmd))
			if err != nil {
				return err
			}
			return printQuote(cmd.OutOrStdout(), res)
		},
	}
	addQuoteFlags(cmd, &flags)
	return cmd
}

func newRemoteCmd() *cobra.Command {
	var (
		baseURL string
		token   string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "remote",
		Short: "Call a running microfinance server",
	}
	cmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Server URL (default MF_BASE_URL or http://localhost:<SERVER_PORT>)")
	cmd.PersistentFlags().StringVar(&token, "token", "", "JWT token (default MF_TOKEN)")
	cmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Request timeout")

	newClient := func() (*apiclient.Client, error) {
		url := baseURL
		if url == "" {
			url = os.Getenv("MF_BASE_URL")
		}
		if url == "" {
			cfg, err := config.NewConfig()
			if err != nil {
				return nil, err
			}
			url = "http://localhost:" + strconv.Itoa(cfg.Server.Port)
		}
		tok := token
		if tok == "" {
			tok = os.Getenv("MF_TOKEN")
		}
		return apiclient.New(apiclient.Options{
			BaseURL:       url,
			Timeout:       timeout,
			TokenProvider: apiclient.StaticToken(tok),
		})
	}

	var flags quoteFlags
	quote := &cobra.Command{
		Use:   "quote",
		Short: "Calculate a quote on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient()
			if err != nil {
				return err
			}
			res, err := client.Quote(cmd.Context(), flags.request(cmd))
			if err != nil {
				return err
			}
			return printQuote(cmd.OutOrStdout(), res)
		},
	}
	addQuoteFlags(quote, &flags)

	loan := &cobra.Command{
		Use:   "loan <id>",
		Short: "Show a loan with its derived state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil || id == 0 {
				return fmt.Errorf("invalid loan id %q", args[0])
			}
			client, err := newClient()
			if err != nil {
				return err
			}
			details, err := client.GetLoan(cmd.Context(), uint(id))
			if err != nil {
				return err
			}
			return printLoan(cmd.OutOrStdout(), details)
		},
	}

	cmd.AddCommand(quote, loan)
	return cmd
}

func connect() (*gorm.DB, func(), error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	db, closeDB, err := openDB(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database: %w", err)
	}
	return db, closeDB, nil
}

// invalidateReport сбрасывает сводку портфеля в общем кэше сервера.
// Без Redis кэш живет только в процессе сервера, и сбрасывать нечего.
func invalidateReport(ctx context.Context, db *gorm.DB) {
	cfg, err := config.NewConfig()
	if err != nil || cfg.Redis.Addr == "" {
		return
	}
	store, err := cache.New(ctx, cache.OptionsFromConfig(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARN: report cache not invalidated: %v\n", err)
		return
	}
	if closer, ok := store.(io.Closer); ok {
		defer closer.Close()
	}
	if err := services.NewReportService(db, store, cfg.Cache.TTL).Invalidate(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "WARN: report cache not invalidated: %v\n", err)
	}
}

func printQuote(out io.Writer, res *services.QuoteResult) error {
	fmt.Fprintf(out, "Amount:          %.2f\n", res.Amount)
	fmt.Fprintf(out, "Term:            %d months\n", res.TermMonths)
	fmt.Fprintf(out, "Monthly rate:    %.2f%% (%s)\n", res.InterestRate*100, res.RateSource)
	fmt.Fprintf(out, "Monthly payment: %.2f\n", res.Quote.MonthlyPayment)
	fmt.Fprintf(out, "Total interest:  %.2f\n", res.Quote.TotalInterest)
	fmt.Fprintf(out, "Total amount:    %.2f\n\n", res.Quote.TotalAmount)
	return printSchedule(out, res.Schedule)
}

func printSchedule(out io.Writer, rows []loanmath.Installment) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "#\tDue date\tPayment\tInterest\tPrincipal\tBalance\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%.2f\t%.2f\t%.2f\t\n",
			r.Number, r.DueDate.Format(dateLayout), r.Payment, r.Interest, r.Principal, r.Balance)
	}
	return tw.Flush()
}

func printLoan(out io.Writer, loan *services.LoanDetails) error {
	fmt.Fprintf(out, "Loan %d (borrower %d)\n", loan.ID, loan.BorrowerID)
	fmt.Fprintf(out, "Status:      %s (%s)\n", loan.Status, loan.State.Status)
	fmt.Fprintf(out, "Principal:   %.2f\n", loan.Principal)
	fmt.Fprintf(out, "Outstanding: %.2f\n", loan.OutstandingBalance)
	if loan.State.IsOverdue {
		fmt.Fprintf(out, "Overdue:     %d days, interest %.2f, total %.2f\n",
			loan.State.DaysOverdue, loan.State.OverdueInterest, loan.State.TotalBalance)
	}
	if loan.NextPaymentDate != nil {
		fmt.Fprintf(out, "Next due:    %s\n", loan.NextPaymentDate.Format(dateLayout))
	}
	if len(loan.Schedule) == 0 {
		return nil
	}
	fmt.Fprintln(out)
	return printSchedule(out, loan.Schedule)
}
