package commands

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strings"

	"github.com/fortiblox/stratus-playground/pkg/journal"
	"github.com/fortiblox/stratus-playground/pkg/runtime"
	"github.com/fortiblox/stratus-playground/pkg/svm"
)

// submit signs ixs with the fee payer and extra signers, executes the
// transaction and prints its receipt.
func submit(ctx context.Context, payer ed25519.PrivateKey, signers []ed25519.PrivateKey, ixs ...svm.Instruction) (*journal.Receipt, error) {
	exec := nd.Executor()

	tx := runtime.NewTransaction(keypairPubkey(payer), ixs...)
	tx.SetBlockhash(exec.RecentBlockhash())
	if err := tx.Sign(append([]ed25519.PrivateKey{payer}, signers...)...); err != nil {
		return nil, err
	}

	receipt, err := exec.Execute(ctx, tx)
	if receipt != nil {
		printReceipt(receipt)
	}
	if err != nil {
		return receipt, fmt.Errorf("transaction %s failed: %w", tx.Signature(), err)
	}
	return receipt, nil
}

func printReceipt(r *journal.Receipt) {
	status := "ok"
	if !r.Succeeded() {
		status = "failed: " + r.Err
		if r.ErrCode != nil {
			status += fmt.Sprintf(" (code %d)", *r.ErrCode)
		}
	}
	fmt.Printf("Signature: %s\n", r.Signature)
	fmt.Printf("Slot:      %d\n", r.Slot)
	fmt.Printf("Status:    %s\n", status)
	fmt.Printf("Compute:   %d units\n", r.ComputeUnitsConsumed)
	fmt.Println("Balances:")
	for i, key := range r.AccountKeys {
		var pre, post uint64
		if i < len(r.PreBalances) {
			pre = r.PreBalances[i]
		}
		if i < len(r.PostBalances) {
			post = r.PostBalances[i]
		}
		fmt.Printf("  %-44s %d -> %d\n", key, pre, post)
	}
	if len(r.Logs) > 0 {
		fmt.Println("Logs:")
		fmt.Println("  " + strings.Join(r.Logs, "\n  "))
	}
}
