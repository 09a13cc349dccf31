package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"gachabot/internal/economy"
)

const itemColumns = `
	w.id, w.user_id, i.character_id, w.image_id, i.normal_url, c.en_name, w.rarity, w.favorite, w.created_at
`

const itemFrom = `
	FROM gacha.waifus w
	JOIN gacha.images i ON i.id = w.image_id
	JOIN gacha.characters c ON c.id = i.character_id
`

type PostgresStore struct {
	db  *pgxpool.Pool
	log *slog.Logger
}

func NewPostgresStore(db *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresStore{db: db, log: logger}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (Item, error) {
	var it Item
	var rarity int16
	if err := row.Scan(&it.ID, &it.UserID, &it.CharacterID, &it.ImageID, &it.ImageURL, &it.Name, &rarity, &it.Favorite, &it.AcquiredAt); err != nil {
		return Item{}, err
	}
	it.Rarity = economy.Rarity(rarity)
	return it, nil
}

// withTx runs fn in a serializable transaction, retrying on serialization
// failures with backoff.
func (s *PostgresStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	const maxAttempts = 6
	retryDelay := 50 * time.Millisecond
	for attempt := 0; attempt < maxAttempts; attempt++ {
		tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
		if err != nil {
			return err
		}
		err = func() error {
			defer tx.Rollback(ctx)
			if err := fn(tx); err != nil {
				return err
			}
			return tx.Commit(ctx)
		}()
		if err == nil {
			return nil
		}
		if !isSerializationError(err) {
			return err
		}
		s.log.Debug("serialization conflict, retrying", "attempt", attempt+1)
		if err := sleepWithContext(ctx, retryDelay); err != nil {
			return err
		}
		if retryDelay < time.Second {
			retryDelay *= 2
		}
	}
	return ErrTxConflict
}

func isSerializationError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func ensureUser(ctx context.Context, db execer, userID string) error {
	_, err := db.Exec(ctx, `
		INSERT INTO gacha.users (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`, userID)
	return err
}

func (s *PostgresStore) Balance(ctx context.Context, userID string) (Balance, error) {
	out := Balance{UserID: userID}
	if err := ensureUser(ctx, s.db, userID); err != nil {
		return out, err
	}
	err := s.db.QueryRow(ctx, `
		SELECT currency, upgrades, trading_locked, removing_locked
		FROM gacha.users
		WHERE id = $1
	`, userID).Scan(&out.Currency, &out.Upgrades, &out.TradingLocked, &out.RemovingLocked)
	return out, err
}

func (s *PostgresStore) Debit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := ensureUser(ctx, s.db, userID); err != nil {
		return err
	}
	cmd, err := s.db.Exec(ctx, `
		UPDATE gacha.users
		SET currency = currency - $2, updated_at = now()
		WHERE id = $1 AND currency >= $2
	`, userID, amount)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrInsufficientFunds
	}
	return nil
}

func (s *PostgresStore) Credit(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := ensureUser(ctx, s.db, userID); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `
		UPDATE gacha.users
		SET currency = currency + $2, updated_at = now()
		WHERE id = $1
	`, userID, amount)
	return err
}

func (s *PostgresStore) SetCurrency(ctx context.Context, userID string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO gacha.users (id, currency)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET currency = EXCLUDED.currency, updated_at = now()
	`, userID, amount)
	return err
}

func (s *PostgresStore) Transfer(ctx context.Context, fromUserID, toUserID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureUser(ctx, tx, fromUserID); err != nil {
			return err
		}
		if err := ensureUser(ctx, tx, toUserID); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, `
			UPDATE gacha.users
			SET currency = currency - $2, updated_at = now()
			WHERE id = $1 AND currency >= $2
		`, fromUserID, amount)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrInsufficientFunds
		}
		_, err = tx.Exec(ctx, `
			UPDATE gacha.users
			SET currency = currency + $2, updated_at = now()
			WHERE id = $1
		`, toUserID, amount)
		return err
	})
}

func (s *PostgresStore) AddUpgrades(ctx context.Context, userID string, amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if err := ensureUser(ctx, s.db, userID); err != nil {
		return err
	}
	_, err := s.db.Exec(ctx, `
		UPDATE gacha.users
		SET upgrades = upgrades + $2, updated_at = now()
		WHERE id = $1
	`, userID, amount)
	return err
}

func (s *PostgresStore) ClaimDaily(ctx context.Context, userID string, amount int64, now time.Time) (Balance, error) {
	out := Balance{UserID: userID}
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureUser(ctx, tx, userID); err != nil {
			return err
		}
		var last *time.Time
		if err := tx.QueryRow(ctx, `
			SELECT last_daily, currency, upgrades
			FROM gacha.users
			WHERE id = $1
			FOR UPDATE
		`, userID).Scan(&last, &out.Currency, &out.Upgrades); err != nil {
			return err
		}
		if last != nil && sameDay(last.In(now.Location()), now) {
			return ErrAlreadyClaimed
		}
		return tx.QueryRow(ctx, `
			UPDATE gacha.users
			SET currency = currency + $2, last_daily = $3, updated_at = now()
			WHERE id = $1
			RETURNING currency
		`, userID, amount, now).Scan(&out.Currency)
	})
	return out, err
}

func (s *PostgresStore) Items(ctx context.Context, userID string) ([]Item, error) {
	rows, err := s.db.Query(ctx, `SELECT `+itemColumns+itemFrom+`
		WHERE w.user_id = $1
		ORDER BY w.id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		it.Index = len(out) + 1
		out = append(out, it)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ItemAt(ctx context.Context, userID string, index int) (Item, error) {
	if index < 1 {
		return Item{}, ErrItemNotFound
	}
	it, err := scanItem(s.db.QueryRow(ctx, `SELECT `+itemColumns+itemFrom+`
		WHERE w.user_id = $1
		ORDER BY w.id
		OFFSET $2 LIMIT 1
	`, userID, index-1))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, err
	}
	it.Index = index
	return it, nil
}

func (s *PostgresStore) itemByID(ctx context.Context, itemID int64) (Item, error) {
	it, err := scanItem(s.db.QueryRow(ctx, `SELECT `+itemColumns+itemFrom+`
		WHERE w.id = $1
	`, itemID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Item{}, ErrItemNotFound
	}
	if err != nil {
		return Item{}, err
	}
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(1) FROM gacha.waifus WHERE user_id = $1 AND id <= $2
	`, it.UserID, it.ID).Scan(&it.Index); err != nil {
		return Item{}, err
	}
	return it, nil
}

func (s *PostgresStore) ItemOwnedBy(ctx context.Context, itemID int64, userID string) (bool, error) {
	var owned bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM gacha.waifus WHERE id = $1 AND user_id = $2)
	`, itemID, userID).Scan(&owned)
	return owned, err
}

func (s *PostgresStore) AddItem(ctx context.Context, in NewItem) (Item, error) {
	if !in.Rarity.Valid() {
		return Item{}, fmt.Errorf("invalid rarity %d", in.Rarity)
	}
	if err := ensureUser(ctx, s.db, in.UserID); err != nil {
		return Item{}, err
	}
	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO gacha.waifus (user_id, image_id, rarity)
		VALUES ($1, $2, $3)
		RETURNING id
	`, in.UserID, in.ImageID, int16(in.Rarity)).Scan(&id)
	if err != nil {
		return Item{}, err
	}
	return s.itemByID(ctx, id)
}

func (s *PostgresStore) DeleteItem(ctx context.Context, itemID int64) error {
	cmd, err := s.db.Exec(ctx, `DELETE FROM gacha.waifus WHERE id = $1`, itemID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *PostgresStore) SetFavorite(ctx context.Context, itemID int64, favorite bool) error {
	cmd, err := s.db.Exec(ctx, `UPDATE gacha.waifus SET favorite = $2 WHERE id = $1`, itemID, favorite)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrItemNotFound
	}
	return nil
}

func (s *PostgresStore) UpgradeItem(ctx context.Context, userID string, itemID int64, cost int64) (Item, error) {
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		var rarity int16
		if err := tx.QueryRow(ctx, `
			SELECT rarity FROM gacha.waifus
			WHERE id = $1 AND user_id = $2
			FOR UPDATE
		`, itemID, userID).Scan(&rarity); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrItemNotFound
			}
			return err
		}
		if economy.Rarity(rarity) >= economy.RarityLegendary {
			return ErrNotUpgradable
		}
		cmd, err := tx.Exec(ctx, `
			UPDATE gacha.users
			SET upgrades = upgrades - $2, updated_at = now()
			WHERE id = $1 AND upgrades >= $2
		`, userID, cost)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrInsufficientParts
		}
		_, err = tx.Exec(ctx, `UPDATE gacha.waifus SET rarity = rarity + 1 WHERE id = $1`, itemID)
		return err
	})
	if err != nil {
		return Item{}, err
	}
	return s.itemByID(ctx, itemID)
}

func (s *PostgresStore) SettleTrade(ctx context.Context, st Settlement) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		sides := []TradeSide{st.A, st.B}
		// lock user rows in a stable order so two settlements cannot deadlock
		ids := []string{st.A.UserID, st.B.UserID}
		sort.Strings(ids)
		balances := make(map[string]int64, 2)
		for _, id := range ids {
			if err := ensureUser(ctx, tx, id); err != nil {
				return err
			}
			var currency int64
			if err := tx.QueryRow(ctx, `
				SELECT currency FROM gacha.users WHERE id = $1 FOR UPDATE
			`, id).Scan(&currency); err != nil {
				return err
			}
			balances[id] = currency
		}

		for _, side := range sides {
			if side.Currency < 0 {
				return ErrInvalidAmount
			}
			if balances[side.UserID] < side.Currency {
				return ErrInsufficientFunds
			}
			for _, itemID := range side.ItemIDs {
				var owner string
				err := tx.QueryRow(ctx, `
					SELECT user_id FROM gacha.waifus WHERE id = $1 FOR UPDATE
				`, itemID).Scan(&owner)
				if errors.Is(err, pgx.ErrNoRows) || (err == nil && owner != side.UserID) {
					return ErrConcurrentMutation
				}
				if err != nil {
					return err
				}
			}
		}

		delta := st.B.Currency - st.A.Currency
		if delta != 0 {
			if _, err := tx.Exec(ctx, `
				UPDATE gacha.users SET currency = currency + $2, updated_at = now() WHERE id = $1
			`, st.A.UserID, delta); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `
				UPDATE gacha.users SET currency = currency - $2, updated_at = now() WHERE id = $1
			`, st.B.UserID, delta); err != nil {
				return err
			}
		}

		if err := moveItemsTx(ctx, tx, st.A.ItemIDs, st.B.UserID); err != nil {
			return err
		}
		return moveItemsTx(ctx, tx, st.B.ItemIDs, st.A.UserID)
	})
}

// moveItemsTx re-creates each item under the recipient so it is appended to
// the end of their inventory.
func moveItemsTx(ctx context.Context, tx pgx.Tx, itemIDs []int64, to string) error {
	for _, id := range itemIDs {
		var imageID int64
		var rarity int16
		if err := tx.QueryRow(ctx, `
			DELETE FROM gacha.waifus WHERE id = $1
			RETURNING image_id, rarity
		`, id).Scan(&imageID, &rarity); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO gacha.waifus (user_id, image_id, rarity)
			VALUES ($1, $2, $3)
		`, to, imageID, rarity); err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) TryLock(ctx context.Context, userID string, kind LockKind) error {
	if err := ensureUser(ctx, s.db, userID); err != nil {
		return err
	}
	query, err := lockQuery(kind)
	if err != nil {
		return err
	}
	cmd, err := s.db.Exec(ctx, query, []string{userID})
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrLocked
	}
	return nil
}

func (s *PostgresStore) LockPair(ctx context.Context, a, b string, kind LockKind) error {
	query, err := lockQuery(kind)
	if err != nil {
		return err
	}
	return s.withTx(ctx, func(tx pgx.Tx) error {
		if err := ensureUser(ctx, tx, a); err != nil {
			return err
		}
		if err := ensureUser(ctx, tx, b); err != nil {
			return err
		}
		cmd, err := tx.Exec(ctx, query, []string{a, b})
		if err != nil {
			return err
		}
		if cmd.RowsAffected() != 2 {
			return ErrLocked
		}
		return nil
	})
}

// lockQuery sets the flag only for users holding neither flow lock.
func lockQuery(kind LockKind) (string, error) {
	switch kind {
	case LockTrading:
		return `
			UPDATE gacha.users SET trading_locked = true, updated_at = now()
			WHERE id = ANY($1) AND NOT trading_locked AND NOT removing_locked
		`, nil
	case LockRemoving:
		return `
			UPDATE gacha.users SET removing_locked = true, updated_at = now()
			WHERE id = ANY($1) AND NOT trading_locked AND NOT removing_locked
		`, nil
	}
	return "", fmt.Errorf("unknown lock kind %q", kind)
}

func (s *PostgresStore) SetLock(ctx context.Context, userID string, kind LockKind, locked bool) error {
	if err := ensureUser(ctx, s.db, userID); err != nil {
		return err
	}
	var query string
	switch kind {
	case LockTrading:
		query = `UPDATE gacha.users SET trading_locked = $2, updated_at = now() WHERE id = $1`
	case LockRemoving:
		query = `UPDATE gacha.users SET removing_locked = $2, updated_at = now() WHERE id = $1`
	default:
		return fmt.Errorf("unknown lock kind %q", kind)
	}
	_, err := s.db.Exec(ctx, query, userID, locked)
	return err
}

func (s *PostgresStore) Lock(ctx context.Context, userID string, kind LockKind) (bool, error) {
	b, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	if kind == LockTrading {
		return b.TradingLocked, nil
	}
	return b.RemovingLocked, nil
}

func (s *PostgresStore) ResetLocks(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `
		UPDATE gacha.users
		SET trading_locked = false, removing_locked = false
		WHERE trading_locked OR removing_locked
	`)
	return err
}

func (s *PostgresStore) Character(ctx context.Context, id int64) (Character, error) {
	var c Character
	err := s.db.QueryRow(ctx, `
		SELECT id, en_name, ja_name, alt_name, droppable
		FROM gacha.characters
		WHERE id = $1
	`, id).Scan(&c.ID, &c.EnName, &c.JaName, &c.AltName, &c.Droppable)
	if errors.Is(err, pgx.ErrNoRows) {
		return c, ErrCharacterNotFound
	}
	if err != nil {
		return c, err
	}

	rows, err := s.db.Query(ctx, `
		SELECT s.id, s.en_title, s.ja_title, s.is_manga
		FROM gacha.character_shows cs
		JOIN gacha.shows s ON s.id = cs.show_id
		WHERE cs.character_id = $1
		ORDER BY s.id
	`, id)
	if err != nil {
		return c, err
	}
	defer rows.Close()
	for rows.Next() {
		var sh Show
		if err := rows.Scan(&sh.ID, &sh.EnTitle, &sh.JaTitle, &sh.IsManga); err != nil {
			return c, err
		}
		c.Shows = append(c.Shows, sh)
		c.ShowIDs = append(c.ShowIDs, sh.ID)
	}
	if err := rows.Err(); err != nil {
		return c, err
	}

	images, err := s.images(ctx, id, false)
	if err != nil {
		return c, err
	}
	c.Images = images
	return c, nil
}

func (s *PostgresStore) images(ctx context.Context, characterID int64, droppableOnly bool) ([]Image, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, character_id, normal_url, mirror_url, flipped_url, droppable
		FROM gacha.images
		WHERE character_id = $1 AND (droppable OR NOT $2)
		ORDER BY id
	`, characterID, droppableOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Image
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.CharacterID, &img.NormalURL, &img.MirrorURL, &img.FlippedURL, &img.Droppable); err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RandomDroppable(ctx context.Context, exclude []int64) (int64, error) {
	if exclude == nil {
		exclude = []int64{}
	}
	var id int64
	err := s.db.QueryRow(ctx, `
		SELECT c.id
		FROM gacha.characters c
		WHERE c.droppable
		  AND NOT (c.id = ANY($1))
		  AND EXISTS (SELECT 1 FROM gacha.images i WHERE i.character_id = c.id AND i.droppable)
		ORDER BY random()
		LIMIT 1
	`, exclude).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNoDroppable
	}
	return id, err
}

func (s *PostgresStore) DroppableImages(ctx context.Context, characterID int64) ([]Image, error) {
	return s.images(ctx, characterID, true)
}

func (s *PostgresStore) SearchCharacters(ctx context.Context, query string, limit int) ([]Character, error) {
	if limit <= 0 {
		limit = 25
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, en_name, ja_name, alt_name, droppable
		FROM gacha.characters
		WHERE en_name ILIKE '%' || $1 || '%'
		   OR alt_name ILIKE '%' || $1 || '%'
		   OR ja_name LIKE '%' || $1 || '%'
		ORDER BY id
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Character
	for rows.Next() {
		var c Character
		if err := rows.Scan(&c.ID, &c.EnName, &c.JaName, &c.AltName, &c.Droppable); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range out {
		if err := s.db.QueryRow(ctx, `
			SELECT COALESCE(array_agg(show_id ORDER BY show_id), '{}')
			FROM gacha.character_shows
			WHERE character_id = $1
		`, out[i].ID).Scan(&out[i].ShowIDs); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *PostgresStore) Show(ctx context.Context, id int64) (Show, error) {
	var sh Show
	err := s.db.QueryRow(ctx, `
		SELECT id, en_title, ja_title, is_manga FROM gacha.shows WHERE id = $1
	`, id).Scan(&sh.ID, &sh.EnTitle, &sh.JaTitle, &sh.IsManga)
	if errors.Is(err, pgx.ErrNoRows) {
		return sh, ErrShowNotFound
	}
	return sh, err
}

func (s *PostgresStore) ShowsLike(ctx context.Context, query string) ([]Show, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, en_title, ja_title, is_manga
		FROM gacha.shows
		WHERE en_title ILIKE '%' || $1 || '%' OR ja_title ILIKE '%' || $1 || '%'
		ORDER BY id
	`, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Show
	for rows.Next() {
		var sh Show
		if err := rows.Scan(&sh.ID, &sh.EnTitle, &sh.JaTitle, &sh.IsManga); err != nil {
			return nil, err
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func (s *PostgresStore) AssignChannel(ctx context.Context, guildID, channelID string) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO gacha.guilds (id, channel_id)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET channel_id = EXCLUDED.channel_id
	`, guildID, channelID)
	return err
}

func (s *PostgresStore) AssignedChannel(ctx context.Context, guildID string) (string, error) {
	var channelID string
	err := s.db.QueryRow(ctx, `SELECT channel_id FROM gacha.guilds WHERE id = $1`, guildID).Scan(&channelID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return channelID, err
}

func (s *PostgresStore) History(ctx context.Context, guildID string) ([]int64, error) {
	var history []int64
	err := s.db.QueryRow(ctx, `SELECT history FROM gacha.guilds WHERE id = $1`, guildID).Scan(&history)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return history, err
}

func (s *PostgresStore) SaveHistory(ctx context.Context, guildID string, history []int64) error {
	if history == nil {
		history = []int64{}
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO gacha.guilds (id, history)
		VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET history = EXCLUDED.history
	`, guildID, history)
	return err
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
