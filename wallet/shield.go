package wallet

import (
	"context"

	"github.com/mezonai/mmn-wallet/common"
	"github.com/mezonai/mmn-wallet/errors"
	"github.com/mezonai/mmn-wallet/keypair"
	"github.com/mezonai/mmn-wallet/ledger"
	"github.com/mezonai/mmn-wallet/logx"
	"github.com/mezonai/mmn-wallet/stealth"
)

// ShieldResult describes a completed shield transfer.
type ShieldResult struct {
	StealthAddress string
	Signature      string
}

// Shield moves amount from the regular funding address into a fresh
// stealth address belonging to this wallet's own identity, breaking the
// on-chain link between the funding source and future spends.
func (m *Manager) Shield(ctx context.Context, amount uint64) (*ShieldResult, error) {
	if m.signer == nil {
		return nil, errors.NewError(errors.ErrCodeInternal, "shield requires a funding signer")
	}

	out, err := stealth.GenerateAddress(m.kp.PublicIdentity())
	if err != nil {
		return nil, err
	}

	account, err := m.lgr.GetAccount(ctx, m.signer.Address())
	if err != nil {
		return nil, err
	}
	if !account.Exists || !account.Balance.IsUint64() || account.Balance.Uint64() < amount+m.fee {
		return nil, errors.NewErrorf(errors.ErrCodeInsufficientBalance,
			"funding address cannot cover %d plus fee %d", amount, m.fee)
	}

	memo, err := stealth.EncodeMetadata(out.ViewTag, out.EphemeralPub)
	if err != nil {
		return nil, err
	}
	tx := ledger.NewTransfer(m.signer.Address(), out.StealthAddress, amount, memo, account.Nonce+1)
	signedTx, err := m.signer.Sign(tx)
	if err != nil {
		return nil, err
	}
	signature, err := m.lgr.SubmitAndConfirm(ctx, signedTx)
	if err != nil {
		return nil, err
	}

	logx.Info("WALLET", "shielded ", amount, " into ", out.StealthAddress)
	return &ShieldResult{StealthAddress: out.StealthAddress, Signature: signature}, nil
}

// Unshield sweeps a detected stealth payment to a regular destination
// address, signed by the reconstructed one-time spending key. The derived
// key is checked against the expected stealth address before any spend is
// attempted.
func (m *Manager) Unshield(ctx context.Context, detected *stealth.DetectedPayment, destinationAddress string) (string, error) {
	spendSecret := m.kp.SpendingSecretKey()
	defer keypair.Wipe(spendSecret)

	oneTime, err := m.scanner.DeriveSpendingKey(detected.EphemeralPub, spendSecret)
	if err != nil {
		return "", err
	}
	defer keypair.Wipe(oneTime)

	derivedPub, err := stealth.ScalarPublicKey(oneTime)
	if err != nil {
		return "", err
	}
	if common.EncodeBytesToBase58(derivedPub) != detected.StealthAddress {
		return "", errors.NewErrorf(errors.ErrCodeKeyDerivationFailed,
			"derived key does not match stealth address %s", detected.StealthAddress)
	}

	account, err := m.lgr.GetAccount(ctx, detected.StealthAddress)
	if err != nil {
		return "", err
	}
	if !account.Exists || !account.Balance.IsUint64() || account.Balance.Uint64() <= m.fee {
		return "", errors.NewErrorf(errors.ErrCodeInsufficientBalance,
			"stealth address balance cannot cover fee %d", m.fee)
	}
	amount := account.Balance.Uint64() - m.fee

	tx := ledger.NewTransfer(detected.StealthAddress, destinationAddress, amount, "", account.Nonce+1)
	signature, err := stealth.SignWithOneTimeKey(oneTime, tx.Serialize())
	if err != nil {
		return "", err
	}
	signedTx, err := ledger.AttachSignature(tx, signature)
	if err != nil {
		return "", err
	}

	txHash, err := m.lgr.SubmitAndConfirm(ctx, signedTx)
	if err != nil {
		return "", err
	}
	logx.Info("WALLET", "unshielded ", amount, " from ", detected.StealthAddress, " to ", destinationAddress)
	return txHash, nil
}
