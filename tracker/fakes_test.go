package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/eqtlab/whale-tracker/pkg/logger"
	"github.com/eqtlab/whale-tracker/pkg/solscan"
)

var errUpstream = errors.New("upstream is down")

type fakeLedger struct {
	mu sync.Mutex
	// history maps account to its full history, newest first
	history  map[string][]solscan.HistoryEntry
	details  map[string]*solscan.TransactionDetail
	requests []string // beforeHash of every page request
	failPage map[string]bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		history:  make(map[string][]solscan.HistoryEntry),
		details:  make(map[string]*solscan.TransactionDetail),
		failPage: make(map[string]bool),
	}
}

func (f *fakeLedger) AccountTransactions(_ context.Context, account string, limit int, beforeHash string) ([]solscan.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, account+"@"+beforeHash)
	if f.failPage[account+"@"+beforeHash] {
		return nil, errUpstream
	}

	all := f.history[account]
	start := 0
	if beforeHash != "" {
		start = len(all)
		for i, e := range all {
			if e.TxHash == beforeHash {
				start = i + 1
				break
			}
		}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return append([]solscan.HistoryEntry(nil), all[start:end]...), nil
}

func (f *fakeLedger) TransactionDetail(_ context.Context, hash string) (*solscan.TransactionDetail, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	d, ok := f.details[hash]
	if !ok {
		return nil, fmt.Errorf("detail %s: %w", hash, errUpstream)
	}
	return d, nil
}

func (f *fakeLedger) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

// addHistory appends successful entries given newest first.
func (f *fakeLedger) addHistory(account string, hashes ...string) {
	for _, h := range hashes {
		f.history[account] = append(f.history[account], solscan.HistoryEntry{TxHash: h, Status: solscan.StatusSuccess})
	}
}

// fakeChain derives readable fake token accounts.
type fakeChain struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	queried  []string
}

func ata(mint, owner string) string {
	return "ata:" + mint + ":" + owner
}

func (c *fakeChain) AssociatedTokenAccount(mint, owner string) (string, error) {
	return ata(mint, owner), nil
}

func (c *fakeChain) TokenBalance(_ context.Context, tokenAccount string) (decimal.Decimal, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.queried = append(c.queried, tokenAccount)
	return c.balances[tokenAccount], nil
}

type sentMessage struct {
	chatID, text string
}

type fakeBot struct {
	mu       sync.Mutex
	sent     []sentMessage
	sendErr  error
	commands []Command
	polledAt int64
	// lastUpdateID is the greatest update id the chat holds, commands or not
	lastUpdateID int64
}

func (b *fakeBot) SendMessage(_ context.Context, chatID, text string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sendErr != nil && chatID != "ops" {
		return b.sendErr
	}
	b.sent = append(b.sent, sentMessage{chatID: chatID, text: text})
	return nil
}

func (b *fakeBot) Commands(_ context.Context, afterUpdateID int64) (CommandBatch, error) {
	b.polledAt = afterUpdateID
	batch := CommandBatch{LastUpdateID: afterUpdateID}
	if b.lastUpdateID > batch.LastUpdateID {
		batch.LastUpdateID = b.lastUpdateID
	}
	for _, c := range b.commands {
		if c.UpdateID > afterUpdateID {
			batch.Commands = append(batch.Commands, c)
			if c.UpdateID > batch.LastUpdateID {
				batch.LastUpdateID = c.UpdateID
			}
		}
	}
	return batch, nil
}

func (b *fakeBot) messages(chatID string) []string {
	var out []string
	for _, m := range b.sent {
		if m.chatID == chatID {
			out = append(out, m.text)
		}
	}
	return out
}

type memStorage struct {
	mu          sync.Mutex
	wallets     map[string]TrackedWallet
	params      ServerParams
	cursorSets  int
	failCursors error
	failParams  error
}

func newMemStorage(wallets ...TrackedWallet) *memStorage {
	s := &memStorage{wallets: make(map[string]TrackedWallet)}
	for _, w := range wallets {
		s.wallets[w.Address] = w
	}
	return s
}

func (s *memStorage) ListWallets(context.Context) ([]TrackedWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrackedWallet, 0, len(s.wallets))
	for _, w := range s.wallets {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func (s *memStorage) GetWallet(_ context.Context, address string) (*TrackedWallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[address]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (s *memStorage) SaveWallet(_ context.Context, w TrackedWallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[w.Address] = w
	return nil
}

func (s *memStorage) DeleteWallet(_ context.Context, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.wallets, address)
	return nil
}

func (s *memStorage) SetWalletCursors(_ context.Context, cursors map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failCursors != nil {
		return s.failCursors
	}
	s.cursorSets++
	for addr, c := range cursors {
		w, ok := s.wallets[addr]
		if !ok {
			continue
		}
		c := c
		w.Cursor = &c
		s.wallets[addr] = w
	}
	return nil
}

func (s *memStorage) GetServerParams(context.Context) (ServerParams, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ServerParams{
		Admins:                append([]string(nil), s.params.Admins...),
		LastProcessedUpdateID: s.params.LastProcessedUpdateID,
	}, nil
}

func (s *memStorage) SaveServerParams(_ context.Context, p ServerParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failParams != nil {
		return s.failParams
	}
	s.params = p
	return nil
}

func (s *memStorage) cursor(address string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wallets[address].Cursor
}

type fakeFormatter struct{}

func (fakeFormatter) Transaction(w TrackedWallet, tx Transaction) string {
	parts := make([]string, 0, len(tx.Actions))
	for _, a := range tx.Actions {
		parts = append(parts, a.Amount.String()+" "+a.Asset.Ticker)
	}
	return fmt.Sprintf("%s %s %s", w.Name, tx.Hash, strings.Join(parts, ","))
}

func (fakeFormatter) Holdings(group string, holdings []Holding) string {
	parts := make([]string, 0, len(holdings))
	for _, h := range holdings {
		parts = append(parts, h.Amount.String()+" "+h.Asset.Ticker)
	}
	return "holdings " + group + ": " + strings.Join(parts, ",")
}

func (fakeFormatter) Glossary(assets []Asset) string {
	parts := make([]string, 0, len(assets))
	for _, a := range assets {
		parts = append(parts, a.Ticker+"="+a.Mint)
	}
	return "glossary: " + strings.Join(parts, ",")
}

func (fakeFormatter) Diagnostic(cycleID string, err error, _ []string) string {
	return "diagnostic " + cycleID + ": " + err.Error()
}

func (fakeFormatter) Wallets(wallets []TrackedWallet) string {
	parts := make([]string, 0, len(wallets))
	for _, w := range wallets {
		parts = append(parts, w.Address)
	}
	return "wallets: " + strings.Join(parts, ",")
}

func (fakeFormatter) CommandResult(cmd Command, reply string, err error) string {
	if err != nil {
		return cmd.Method + " failed: " + err.Error()
	}
	return cmd.Method + " ok: " + reply
}

func testConfig() Config {
	return Config{
		ReportChatID:      "report",
		OpsChatID:         "ops",
		PageSize:          3,
		MaxHistoryPages:   100,
		WalletConcurrency: 4,
		DetailConcurrency: 4,
		Dust:              Amount{decimal.RequireFromString("0.01")},
	}
}

func newTestTracker(cfg Config, s Storage, l Ledger, c Chain, b Bot) *Tracker {
	return New(cfg, s, l, c, b, fakeFormatter{}, logger.NewNop())
}

func strPtr(s string) *string {
	return &s
}

func i32Ptr(v int32) *int32 {
	return &v
}

func i64Ptr(v int64) *int64 {
	return &v
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func tokenBalance(account, mint, symbol string, decimals int32, pre, post string) solscan.TokenBalance {
	tb := solscan.TokenBalance{
		Account: account,
		Token: solscan.TokenInfo{
			TokenAddress: mint,
			Decimals:     i32Ptr(decimals),
			Symbol:       symbol,
			Name:         symbol + " token",
		},
	}
	tb.Amount.PreAmount = dec(pre)
	tb.Amount.PostAmount = dec(post)
	return tb
}
