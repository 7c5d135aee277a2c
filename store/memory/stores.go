package memory

// Stores bundles one instance of each store.
type Stores struct {
	Accounts           *Accounts
	RefreshTokens      *RefreshTokens
	BackupCodes        *BackupCodes
	VerificationTokens *VerificationTokens
}

func New() *Stores {
	return &Stores{
		Accounts:           NewAccounts(),
		RefreshTokens:      NewRefreshTokens(),
		BackupCodes:        NewBackupCodes(),
		VerificationTokens: NewVerificationTokens(),
	}
}
