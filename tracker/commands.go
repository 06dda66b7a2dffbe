package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/eqtlab/whale-tracker/pkg/metrics"
	"github.com/eqtlab/whale-tracker/pkg/solana"
)

var (
	ErrUnauthorized = errors.New("user is not an admin")
	ErrBadCommand   = errors.New("bad command")
)

// IsCommandError reports whether err is a rejected admin command rather than a processing failure.
func IsCommandError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrBadCommand)
}

// ProcessCommands handles admin commands newer than the stored high-water mark in ascending update id order.
// The mark is stored after every handled command. Rejected commands are answered and skipped,
// any other failure stops processing with the mark at the last handled command.
// Once the whole batch is handled the mark moves past the updates that held no command.
func (t *Tracker) ProcessCommands(ctx context.Context) error {
	params, err := t.storage.GetServerParams(ctx)
	if err != nil {
		return fmt.Errorf("get server params: %w", err)
	}
	if len(params.Admins) == 0 && len(t.cfg.BootstrapAdmins) > 0 {
		params.Admins = append([]string(nil), t.cfg.BootstrapAdmins...)
	}

	batch, err := t.bot.Commands(ctx, params.LastProcessedUpdateID)
	if err != nil {
		return fmt.Errorf("poll commands: %w", err)
	}
	commands := batch.Commands
	sort.SliceStable(commands, func(i, j int) bool {
		return commands[i].UpdateID < commands[j].UpdateID
	})

	for _, cmd := range commands {
		if cmd.UpdateID <= params.LastProcessedUpdateID {
			continue
		}

		log := t.logger.With(
			zap.Int64("update_id", cmd.UpdateID),
			zap.String("method", cmd.Method),
			zap.String("user", cmd.User),
		)

		reply, err := t.handleCommand(ctx, &params, cmd)
		switch {
		case err == nil:
			metrics.CommandsTotal.WithLabelValues("ok").Inc()
			log.Info("command handled")
		case IsCommandError(err):
			metrics.CommandsTotal.WithLabelValues("rejected").Inc()
			log.Warn("command rejected", zap.Error(err))
		default:
			metrics.CommandsTotal.WithLabelValues("failed").Inc()
			return fmt.Errorf("handle command %d: %w", cmd.UpdateID, err)
		}

		params.LastProcessedUpdateID = cmd.UpdateID
		if err := t.storage.SaveServerParams(ctx, params); err != nil {
			return fmt.Errorf("save server params: %w", err)
		}

		if sendErr := t.bot.SendMessage(ctx, cmd.ChatID, t.format.CommandResult(cmd, reply, err)); sendErr != nil {
			log.Error("failed to reply to command", zap.Error(sendErr))
		}
	}

	if batch.LastUpdateID > params.LastProcessedUpdateID {
		params.LastProcessedUpdateID = batch.LastUpdateID
		if err := t.storage.SaveServerParams(ctx, params); err != nil {
			return fmt.Errorf("save server params: %w", err)
		}
		t.logger.Debug("skipped updates without commands", zap.Int64("update_id", batch.LastUpdateID))
	}

	return nil
}

func (t *Tracker) handleCommand(ctx context.Context, params *ServerParams, cmd Command) (string, error) {
	if !contains(params.Admins, cmd.User) {
		return "", fmt.Errorf("%w: %q", ErrUnauthorized, cmd.User)
	}

	switch cmd.Method {
	case "track_wallet":
		return t.trackWallet(ctx, cmd)
	case "remove_wallet":
		return t.removeWallet(ctx, cmd)
	case "update_wallet":
		return t.updateWallet(ctx, cmd)
	case "reset_cursor":
		return t.resetCursor(ctx, cmd)
	case "list_wallets":
		wallets, err := t.storage.ListWallets(ctx)
		if err != nil {
			return "", fmt.Errorf("list wallets: %w", err)
		}
		return t.format.Wallets(wallets), nil
	case "add_admin":
		user, err := requireArg(cmd, "user")
		if err != nil {
			return "", err
		}
		if !contains(params.Admins, user) {
			params.Admins = append(params.Admins, user)
		}
		return fmt.Sprintf("%s is an admin", user), nil
	case "remove_admin":
		user, err := requireArg(cmd, "user")
		if err != nil {
			return "", err
		}
		if !contains(params.Admins, user) {
			return "", fmt.Errorf("%w: %s is not an admin", ErrBadCommand, user)
		}
		if len(params.Admins) == 1 {
			return "", fmt.Errorf("%w: can't remove the last admin", ErrBadCommand)
		}
		params.Admins = remove(params.Admins, user)
		return fmt.Sprintf("%s is no longer an admin", user), nil
	default:
		return "", fmt.Errorf("%w: unknown method %q", ErrBadCommand, cmd.Method)
	}
}

func (t *Tracker) trackWallet(ctx context.Context, cmd Command) (string, error) {
	address, err := requireArg(cmd, "address")
	if err != nil {
		return "", err
	}
	name, err := requireArg(cmd, "name")
	if err != nil {
		return "", err
	}
	group, err := requireArg(cmd, "group")
	if err != nil {
		return "", err
	}
	if err := solana.ValidateAddress(address); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadCommand, err)
	}

	existing, err := t.storage.GetWallet(ctx, address)
	if err != nil {
		return "", fmt.Errorf("get wallet: %w", err)
	}
	if existing != nil {
		return "", fmt.Errorf("%w: %s is already tracked as %s (%s)", ErrBadCommand, address, existing.Name, existing.Group)
	}

	if err := t.storage.SaveWallet(ctx, TrackedWallet{Address: address, Name: name, Group: group}); err != nil {
		return "", fmt.Errorf("save wallet: %w", err)
	}
	return fmt.Sprintf("tracking %s as %s (%s)", address, name, group), nil
}

func (t *Tracker) removeWallet(ctx context.Context, cmd Command) (string, error) {
	w, err := t.requireWallet(ctx, cmd)
	if err != nil {
		return "", err
	}
	if err := t.storage.DeleteWallet(ctx, w.Address); err != nil {
		return "", fmt.Errorf("delete wallet: %w", err)
	}
	return fmt.Sprintf("%s is no longer tracked", w.Address), nil
}

func (t *Tracker) updateWallet(ctx context.Context, cmd Command) (string, error) {
	w, err := t.requireWallet(ctx, cmd)
	if err != nil {
		return "", err
	}
	name, hasName := cmd.Kwargs["name"]
	group, hasGroup := cmd.Kwargs["group"]
	if (!hasName || name == "") && (!hasGroup || group == "") {
		return "", fmt.Errorf("%w: name or group is required", ErrBadCommand)
	}
	if name != "" {
		w.Name = name
	}
	if group != "" {
		w.Group = group
	}
	if err := t.storage.SaveWallet(ctx, *w); err != nil {
		return "", fmt.Errorf("save wallet: %w", err)
	}
	return fmt.Sprintf("%s is now %s (%s)", w.Address, w.Name, w.Group), nil
}

func (t *Tracker) resetCursor(ctx context.Context, cmd Command) (string, error) {
	w, err := t.requireWallet(ctx, cmd)
	if err != nil {
		return "", err
	}
	w.Cursor = nil
	if err := t.storage.SaveWallet(ctx, *w); err != nil {
		return "", fmt.Errorf("save wallet: %w", err)
	}
	return fmt.Sprintf("%s will restart from its latest transaction", w.Address), nil
}

func (t *Tracker) requireWallet(ctx context.Context, cmd Command) (*TrackedWallet, error) {
	address, err := requireArg(cmd, "address")
	if err != nil {
		return nil, err
	}
	w, err := t.storage.GetWallet(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	if w == nil {
		return nil, fmt.Errorf("%w: %s is not tracked", ErrBadCommand, address)
	}
	return w, nil
}

func requireArg(cmd Command, key string) (string, error) {
	v := cmd.Kwargs[key]
	if v == "" {
		return "", fmt.Errorf("%w: %s requires %s", ErrBadCommand, cmd.Method, key)
	}
	return v, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func remove(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}
