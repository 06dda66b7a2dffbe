package tracker

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/eqtlab/whale-tracker/pkg/logger"
	"github.com/eqtlab/whale-tracker/pkg/solscan"
)

// Separator joins report sections and transaction blocks inside the summary.
const Separator = "\n------------------------------------\n"

// Tracker turns the ledger history of tracked wallets into chat reports.
type Tracker struct {
	cfg     Config
	storage Storage
	ledger  Ledger
	chain   Chain
	bot     Bot
	format  Formatter
	logger  *zap.Logger
	logs    *logger.Logger
}

type Storage interface {
	// ListWallets returns a snapshot of every tracked wallet ordered by address
	ListWallets(ctx context.Context) ([]TrackedWallet, error)
	// GetWallet returns nil without error if the address is not tracked
	GetWallet(ctx context.Context, address string) (*TrackedWallet, error)
	SaveWallet(ctx context.Context, w TrackedWallet) error
	DeleteWallet(ctx context.Context, address string) error
	// SetWalletCursors stores all cursors atomically, addresses that are no longer tracked are skipped
	SetWalletCursors(ctx context.Context, cursors map[string]string) error
	// GetServerParams returns zero params if they were never saved
	GetServerParams(ctx context.Context) (ServerParams, error)
	SaveServerParams(ctx context.Context, p ServerParams) error
}

// Ledger is the paginated history index and the per transaction detail source.
type Ledger interface {
	AccountTransactions(ctx context.Context, account string, limit int, beforeHash string) ([]solscan.HistoryEntry, error)
	TransactionDetail(ctx context.Context, hash string) (*solscan.TransactionDetail, error)
}

type Chain interface {
	AssociatedTokenAccount(mint, owner string) (string, error)
	TokenBalance(ctx context.Context, tokenAccount string) (decimal.Decimal, error)
}

type Bot interface {
	SendMessage(ctx context.Context, chatID, text string) error
	// Commands returns admin commands with update id greater than afterUpdateID
	Commands(ctx context.Context, afterUpdateID int64) (CommandBatch, error)
}

// Formatter renders report parts as chat messages.
type Formatter interface {
	Transaction(w TrackedWallet, tx Transaction) string
	Holdings(group string, holdings []Holding) string
	Glossary(assets []Asset) string
	Diagnostic(cycleID string, err error, recentLogs []string) string
	Wallets(wallets []TrackedWallet) string
	CommandResult(cmd Command, reply string, err error) string
}

func New(
	cfg Config,
	s Storage,
	ledger Ledger,
	chain Chain,
	bot Bot,
	f Formatter,
	l *logger.Logger,
) *Tracker {
	return &Tracker{
		cfg:     cfg,
		storage: s,
		ledger:  ledger,
		chain:   chain,
		bot:     bot,
		format:  f,
		logger:  l.Logger,
		logs:    l,
	}
}

// nolint:lll
type Config struct {
	ReportChatID      string   `env:"REPORT_CHAT_ID, required"`        // Chat receiving activity reports
	OpsChatID         string   `env:"OPS_CHAT_ID, required"`           // Chat receiving cycle diagnostics
	PageSize          int      `env:"PAGE_SIZE, default=10"`           // History entries requested per page
	MaxHistoryPages   int      `env:"MAX_HISTORY_PAGES, default=1000"` // Pagination fails after this many pages
	WalletConcurrency int      `env:"WALLET_CONCURRENCY, default=16"`  // Wallets synced at once
	DetailConcurrency int      `env:"DETAIL_CONCURRENCY, default=8"`   // Transaction details fetched at once per wallet
	Dust              Amount   `env:"DUST, default=0.01"`              // Movements with magnitude not above this are dropped
	Holdings          bool     `env:"HOLDINGS, default=true"`          // Append holdings and token glossary to reports
	BootstrapAdmins   []string `env:"BOOTSTRAP_ADMINS"`                // Admins used while none are stored
}

// Amount is a decimal that can be read from the environment.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) EnvDecode(val string) error {
	d, err := decimal.NewFromString(val)
	if err != nil {
		return fmt.Errorf("parse amount %q: %w", val, err)
	}
	a.Decimal = d
	return nil
}

func (t *Tracker) dust() decimal.Decimal {
	return t.cfg.Dust.Decimal
}
