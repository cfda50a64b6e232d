package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/comings/prepaid-api/internal/adapter/handler"
)

type options struct {
	addr       string
	token      string
	customerID string
	requests   int
	amount     int64
	charge     int64
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "stress_test",
		Short: "Fire concurrent deducts at one customer and check the balance never goes negative",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.validate(); err != nil {
				return err
			}
			return run(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "localhost:50051", "gRPC address of the server")
	cmd.Flags().StringVar(&opts.token, "token", "", "access token of the shop")
	cmd.Flags().StringVar(&opts.customerID, "customer", "", "customer id to charge and deduct")
	cmd.Flags().IntVar(&opts.requests, "requests", 50, "number of concurrent deducts")
	cmd.Flags().Int64Var(&opts.amount, "amount", 1000, "amount per deduct")
	cmd.Flags().Int64Var(&opts.charge, "charge", 20000, "amount charged before the run")
	_ = cmd.MarkFlagRequired("token")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

func (o options) validate() error {
	switch {
	case o.requests <= 0:
		return fmt.Errorf("--requests must be positive, got %d", o.requests)
	case o.amount <= 0:
		return fmt.Errorf("--amount must be positive, got %d", o.amount)
	case o.charge < 0:
		return fmt.Errorf("--charge must not be negative, got %d", o.charge)
	}
	return nil
}

func run(ctx context.Context, opts options) error {
	conn, err := grpc.NewClient(opts.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial %s: %w", opts.addr, err)
	}
	defer conn.Close()

	client := handler.NewLedgerClient(conn)
	ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+opts.token)

	if opts.charge > 0 {
		if _, err := client.Charge(ctx, &handler.ChargeRequest{
			CustomerID:    opts.customerID,
			ActualPayment: opts.charge,
			PaymentMethod: "CASH",
			Note:          "stress test",
		}); err != nil {
			return fmt.Errorf("initial charge: %w", err)
		}
	}

	before, err := client.GetBalance(ctx, &handler.BalanceRequest{CustomerID: opts.customerID})
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	var successCount, rejectCount, errorCount atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < opts.requests; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Deduct(ctx, &handler.DeductRequest{CustomerID: opts.customerID, Amount: opts.amount})
			switch status.Code(err) {
			case codes.OK:
				successCount.Add(1)
			case codes.FailedPrecondition:
				rejectCount.Add(1)
			default:
				errorCount.Add(1)
			}
		}()
	}

	wg.Wait()
	elapsed := time.Since(start)

	after, err := client.GetBalance(ctx, &handler.BalanceRequest{CustomerID: opts.customerID})
	if err != nil {
		return fmt.Errorf("read balance: %w", err)
	}

	success := int64(successCount.Load())
	expected := before.Balance / opts.amount
	if expected > int64(opts.requests) {
		expected = int64(opts.requests)
	}

	fmt.Println("========== STRESS TEST RESULTS ==========")
	fmt.Printf("Starting Balance: %d\n", before.Balance)
	fmt.Printf("Total Requests:   %d\n", opts.requests)
	fmt.Printf("Successful:       %d\n", success)
	fmt.Printf("Rejected:         %d\n", rejectCount.Load())
	fmt.Printf("Errors:           %d\n", errorCount.Load())
	fmt.Printf("Duration:         %v\n", elapsed)
	fmt.Printf("Final Balance:    %d\n", after.Balance)
	fmt.Println("==========================================")

	if after.Balance < 0 {
		return fmt.Errorf("FAIL: balance went negative (%d)", after.Balance)
	}
	if after.Balance != before.Balance-success*opts.amount {
		return fmt.Errorf("FAIL: expected balance %d, got %d", before.Balance-success*opts.amount, after.Balance)
	}
	if errorCount.Load() == 0 && success != expected {
		return fmt.Errorf("FAIL: expected %d successful deducts, got %d", expected, success)
	}
	fmt.Println("PASS: balance stayed consistent")
	return nil
}
