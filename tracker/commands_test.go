package tracker

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	walletA = "So11111111111111111111111111111111111111112"
	walletB = "TokenkegQfeYyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA"
)

func command(id int64, user, method string, kwargs map[string]string) Command {
	return Command{UpdateID: id, ChatID: "admin-chat", User: user, Method: method, Kwargs: kwargs}
}

func adminStorage(admins ...string) *memStorage {
	s := newMemStorage()
	s.params = ServerParams{Admins: admins, LastProcessedUpdateID: 4}
	return s
}

func TestProcessCommands_AscendingAfterMark(t *testing.T) {
	storage := adminStorage("root")
	bot := &fakeBot{commands: []Command{
		command(7, "root", "track_wallet", map[string]string{"address": walletB, "name": "B", "group": "g"}),
		command(3, "root", "track_wallet", map[string]string{"address": "stale", "name": "S", "group": "g"}),
		command(5, "root", "track_wallet", map[string]string{"address": walletA, "name": "A", "group": "g"}),
		command(6, "root", "update_wallet", map[string]string{"address": walletA, "name": "A2"}),
	}}
	tr := newTestTracker(testConfig(), storage, newFakeLedger(), &fakeChain{}, bot)

	require.NoError(t, tr.ProcessCommands(context.Background()))

	assert.EqualValues(t, 4, bot.polledAt)
	assert.EqualValues(t, 7, storage.params.LastProcessedUpdateID)
	assert.Equal(t, "A2", storage.wallets[walletA].Name)
	assert.Contains(t, storage.wallets, walletB)
	assert.NotContains(t, storage.wallets, "stale")

	replies := bot.messages("admin-chat")
	require.Len(t, replies, 3)
	assert.Contains(t, replies[0], "track_wallet ok")
	assert.Contains(t, replies[1], "update_wallet ok")
}

func TestProcessCommands_RejectedCommandsAdvanceMark(t *testing.T) {
	storage := adminStorage("root")
	bot := &fakeBot{commands: []Command{
		command(5, "mallory", "add_admin", map[string]string{"user": "mallory"}),
		command(6, "root", "self_destruct", nil),
		command(7, "root", "track_wallet", map[string]string{"address": "not-base58!", "name": "x", "group": "g"}),
		command(8, "root", "track_wallet", map[string]string{"address": walletA}),
	}}
	tr := newTestTracker(testConfig(), storage, newFakeLedger(), &fakeChain{}, bot)

	require.NoError(t, tr.ProcessCommands(context.Background()))

	assert.EqualValues(t, 8, storage.params.LastProcessedUpdateID)
	assert.Equal(t, []string{"root"}, storage.params.Admins)
	assert.Empty(t, storage.wallets)

	replies := bot.messages("admin-chat")
	require.Len(t, replies, 4)
	assert.Contains(t, replies[0], ErrUnauthorized.Error())
	assert.Contains(t, replies[1], "unknown method")
	assert.Contains(t, replies[2], ErrBadCommand.Error())
	assert.Contains(t, replies[3], "requires name")
}

// failingSaves rejects every wallet write.
type failingSaves struct {
	*memStorage
}

func (failingSaves) SaveWallet(context.Context, TrackedWallet) error {
	return errors.New("disk full")
}

func TestProcessCommands_FailureKeepsMarkAtLastHandled(t *testing.T) {
	storage := adminStorage("root")
	bot := &fakeBot{commands: []Command{
		command(5, "root", "add_admin", map[string]string{"user": "alice"}),
		command(6, "root", "track_wallet", map[string]string{"address": walletA, "name": "A", "group": "g"}),
		command(7, "root", "add_admin", map[string]string{"user": "bob"}),
	}}
	tr := newTestTracker(testConfig(), failingSaves{storage}, newFakeLedger(), &fakeChain{}, bot)

	err := tr.ProcessCommands(context.Background())
	require.Error(t, err)
	assert.False(t, IsCommandError(err))

	assert.EqualValues(t, 5, storage.params.LastProcessedUpdateID)
	assert.Equal(t, []string{"root", "alice"}, storage.params.Admins)
	assert.Len(t, bot.messages("admin-chat"), 1)
}

func TestProcessCommands_ParamsSaveFailureStops(t *testing.T) {
	storage := adminStorage("root")
	storage.failParams = errors.New("read only")
	bot := &fakeBot{commands: []Command{
		command(5, "root", "list_wallets", nil),
	}}
	tr := newTestTracker(testConfig(), storage, newFakeLedger(), &fakeChain{}, bot)

	require.Error(t, tr.ProcessCommands(context.Background()))
	assert.EqualValues(t, 4, storage.params.LastProcessedUpdateID)
	assert.Empty(t, bot.sent)
}

func TestProcessCommands_MarkSkipsUpdatesWithoutCommands(t *testing.T) {
	storage := adminStorage("root")
	bot := &fakeBot{lastUpdateID: 104}
	tr := newTestTracker(testConfig(), storage, newFakeLedger(), &fakeChain{}, bot)

	require.NoError(t, tr.ProcessCommands(context.Background()))
	assert.EqualValues(t, 104, storage.params.LastProcessedUpdateID)
	assert.Empty(t, bot.sent)

	bot.commands = []Command{command(105, "root", "list_wallets", nil)}
	bot.lastUpdateID = 105
	require.NoError(t, tr.ProcessCommands(context.Background()))
	assert.EqualValues(t, 104, bot.polledAt)
	assert.EqualValues(t, 105, storage.params.LastProcessedUpdateID)
	assert.Len(t, bot.messages("admin-chat"), 1)
}

func TestProcessCommands_MarkPassesTrailingUpdates(t *testing.T) {
	storage := adminStorage("root")
	bot := &fakeBot{
		commands:     []Command{command(6, "root", "add_admin", map[string]string{"user": "alice"})},
		lastUpdateID: 9,
	}
	tr := newTestTracker(testConfig(), storage, newFakeLedger(), &fakeChain{}, bot)

	require.NoError(t, tr.ProcessCommands(context.Background()))
	assert.EqualValues(t, 9, storage.params.LastProcessedUpdateID)
	assert.Equal(t, []string{"root", "alice"}, storage.params.Admins)
}

func TestProcessCommands_FailureKeepsTrailingUpdates(t *testing.T) {
	storage := adminStorage("root")
	bot := &fakeBot{
		commands: []Command{
			command(5, "root", "add_admin", map[string]string{"user": "alice"}),
			command(6, "root", "track_wallet", map[string]string{"address": walletA, "name": "A", "group": "g"}),
		},
		lastUpdateID: 9,
	}
	tr := newTestTracker(testConfig(), failingSaves{storage}, newFakeLedger(), &fakeChain{}, bot)

	require.Error(t, tr.ProcessCommands(context.Background()))
	assert.EqualValues(t, 5, storage.params.LastProcessedUpdateID)
}

func TestProcessCommands_BootstrapAdmins(t *testing.T) {
	storage := newMemStorage()
	bot := &fakeBot{commands: []Command{
		command(1, "founder", "add_admin", map[string]string{"user": "ops"}),
	}}
	cfg := testConfig()
	cfg.BootstrapAdmins = []string{"founder"}
	tr := newTestTracker(cfg, storage, newFakeLedger(), &fakeChain{}, bot)

	require.NoError(t, tr.ProcessCommands(context.Background()))
	assert.Equal(t, []string{"founder", "ops"}, storage.params.Admins)
	assert.EqualValues(t, 1, storage.params.LastProcessedUpdateID)
}

func TestProcessCommands_RemoveAdmin(t *testing.T) {
	storage := adminStorage("root", "alice")
	bot := &fakeBot{commands: []Command{
		command(5, "root", "remove_admin", map[string]string{"user": "alice"}),
		command(6, "root", "remove_admin", map[string]string{"user": "root"}),
		command(7, "alice", "list_wallets", nil),
	}}
	tr := newTestTracker(testConfig(), storage, newFakeLedger(), &fakeChain{}, bot)

	require.NoError(t, tr.ProcessCommands(context.Background()))
	assert.Equal(t, []string{"root"}, storage.params.Admins)

	replies := bot.messages("admin-chat")
	require.Len(t, replies, 3)
	assert.Contains(t, replies[1], "last admin")
	assert.Contains(t, replies[2], ErrUnauthorized.Error())
}

func TestProcessCommands_WalletLifecycle(t *testing.T) {
	storage := adminStorage("root")
	storage.wallets[walletA] = TrackedWallet{Address: walletA, Name: "A", Group: "g", Cursor: strPtr("h1")}
	bot := &fakeBot{commands: []Command{
		command(5, "root", "track_wallet", map[string]string{"address": walletA, "name": "again", "group": "g"}),
		command(6, "root", "reset_cursor", map[string]string{"address": walletA}),
		command(7, "root", "list_wallets", nil),
		command(8, "root", "remove_wallet", map[string]string{"address": walletA}),
		command(9, "root", "remove_wallet", map[string]string{"address": walletA}),
	}}
	tr := newTestTracker(testConfig(), storage, newFakeLedger(), &fakeChain{}, bot)

	require.NoError(t, tr.ProcessCommands(context.Background()))
	assert.Empty(t, storage.wallets)

	replies := bot.messages("admin-chat")
	require.Len(t, replies, 5)
	assert.Contains(t, replies[0], "already tracked")
	assert.Contains(t, replies[1], "reset_cursor ok")
	assert.Equal(t, "list_wallets ok: wallets: "+walletA, replies[2])
	assert.Contains(t, replies[4], "is not tracked")
}

func TestProcessCommands_ResetCursorClearsIt(t *testing.T) {
	storage := adminStorage("root")
	storage.wallets[walletA] = TrackedWallet{Address: walletA, Group: "g", Cursor: strPtr("h1")}
	bot := &fakeBot{commands: []Command{
		command(5, "root", "reset_cursor", map[string]string{"address": walletA}),
	}}
	tr := newTestTracker(testConfig(), storage, newFakeLedger(), &fakeChain{}, bot)

	require.NoError(t, tr.ProcessCommands(context.Background()))
	assert.Nil(t, storage.cursor(walletA))
}
