package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"chatrelay/pkg/domain"
)

const migrateLockID int64 = 48213911

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &ChatModel{}, &MessageModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				DELETE FROM chat_models c
				WHERE NOT EXISTS (SELECT 1 FROM user_models u WHERE u.id = c.user_id);
				DELETE FROM message_models m
				WHERE NOT EXISTS (SELECT 1 FROM chat_models c WHERE c.id = m.chat_id);
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'chat_models'
					AND constraint_name = 'chat_models_user_id_fkey'
				) THEN
					ALTER TABLE chat_models
					ADD CONSTRAINT chat_models_user_id_fkey
					FOREIGN KEY (user_id) REFERENCES user_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'message_models'
					AND constraint_name = 'message_models_chat_id_fkey'
				) THEN
					ALTER TABLE message_models
					ADD CONSTRAINT message_models_chat_id_fkey
					FOREIGN KEY (chat_id) REFERENCES chat_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveUser registers or updates a user.
func (s *GormStore) SaveUser(u domain.User) error {
	model := userToModel(u)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "email", "password_hash", "provider", "role",
			"subscription_start", "subscription_end", "stripe_customer_id",
			"provider_profile", "updated_at",
		}),
	}).Create(&model).Error
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(email string) (bool, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByEmail looks up a user by email.
func (s *GormStore) GetUserByEmail(email string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("email = ?", email).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns a page of users, newest first.
func (s *GormStore) ListUsers(offset, limit int) ([]domain.User, error) {
	query := s.db.Order("created_at DESC")
	if offset > 0 {
		query = query.Offset(offset)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var models []UserModel
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// UserCount returns number of users.
func (s *GormStore) UserCount() (int, error) {
	var count int64
	if err := s.db.Model(&UserModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// UserCountsByRole groups users by role.
func (s *GormStore) UserCountsByRole() (map[domain.UserRole]int, error) {
	var rows []struct {
		Role  string
		Count int
	}
	if err := s.db.Model(&UserModel{}).
		Select("role, COUNT(*) AS count").
		Group("role").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make(map[domain.UserRole]int, len(rows))
	for _, row := range rows {
		res[domain.UserRole(row.Role)] = row.Count
	}
	return res, nil
}

// DeleteUser removes a user with their chats and messages.
func (s *GormStore) DeleteUser(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id IN (?)",
			tx.Model(&ChatModel{}).Select("id").Where("user_id = ?", id),
		).Delete(&MessageModel{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ChatModel{}, "user_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&UserModel{}, "id = ?", id).Error
	})
}

// SaveChat stores or updates a chat.
func (s *GormStore) SaveChat(c domain.Chat) error {
	model := chatToModel(c)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "title", "updated_at"}),
	}).Create(&model).Error
}

// GetChat retrieves a chat by ID.
func (s *GormStore) GetChat(id string) (domain.Chat, bool, error) {
	var model ChatModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Chat{}, false, nil
		}
		return domain.Chat{}, false, err
	}
	return chatFromModel(model), true, nil
}

// ListChatsByOwner returns a user's chats, most recently updated first.
func (s *GormStore) ListChatsByOwner(userID string) ([]domain.Chat, error) {
	var models []ChatModel
	if err := s.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Chat, 0, len(models))
	for _, m := range models {
		res = append(res, chatFromModel(m))
	}
	return res, nil
}

// DeleteChat removes a chat and its messages.
// Messages are deleted explicitly as well as by FK cascade.
func (s *GormStore) DeleteChat(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&MessageModel{}, "chat_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ChatModel{}, "id = ?", id).Error
	})
}

// ChatCount returns total chats.
func (s *GormStore) ChatCount() (int, error) {
	var count int64
	if err := s.db.Model(&ChatModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CountChatsByOwner returns the live chat count for the plan-limit gate.
func (s *GormStore) CountChatsByOwner(userID string) (int, error) {
	var count int64
	if err := s.db.Model(&ChatModel{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// ChatsCreatedPerDay buckets chat creation by calendar day since the cutoff.
func (s *GormStore) ChatsCreatedPerDay(since time.Time) ([]domain.DailyChatCount, error) {
	var rows []struct {
		Date  string
		Chats int
	}
	if err := s.db.Model(&ChatModel{}).
		Select("to_char(created_at, 'YYYY-MM-DD') AS date, COUNT(*) AS chats").
		Where("created_at >= ?", since).
		Group("date").
		Order("date ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]domain.DailyChatCount, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.DailyChatCount{Date: row.Date, Chats: row.Chats})
	}
	return res, nil
}

// AppendMessage records a message.
func (s *GormStore) AppendMessage(msg domain.Message) error {
	model := messageToModel(msg)
	return s.db.Create(&model).Error
}

// ListMessages returns the full transcript of a chat in chronological order.
func (s *GormStore) ListMessages(chatID string) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for _, m := range models {
		msgs = append(msgs, messageFromModel(m))
	}
	return msgs, nil
}

// ListRecentMessages returns the most recent messages of a chat in
// chronological order (newest-first query, then reversed).
func (s *GormStore) ListRecentMessages(chatID string, limit int) ([]domain.Message, error) {
	if limit <= 0 {
		return []domain.Message{}, nil
	}
	var models []MessageModel
	if err := s.db.Where("chat_id = ?", chatID).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error; err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		msgs = append(msgs, messageFromModel(models[i]))
	}
	return msgs, nil
}

// LatestMessage returns the newest message of a chat.
func (s *GormStore) LatestMessage(chatID string) (domain.Message, bool, error) {
	var model MessageModel
	if err := s.db.Where("chat_id = ?", chatID).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Message{}, false, nil
		}
		return domain.Message{}, false, err
	}
	return messageFromModel(model), true, nil
}

// MessageCount returns total messages.
func (s *GormStore) MessageCount() (int, error) {
	var count int64
	if err := s.db.Model(&MessageModel{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CountMessagesByChat returns the live message count for the plan-limit gate.
func (s *GormStore) CountMessagesByChat(chatID string) (int, error) {
	var count int64
	if err := s.db.Model(&MessageModel{}).Where("chat_id = ?", chatID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// CountUserMessagesByChat counts user-sender messages, used for the
// first-message title rename check.
func (s *GormStore) CountUserMessagesByChat(chatID string) (int, error) {
	var count int64
	if err := s.db.Model(&MessageModel{}).
		Where("chat_id = ? AND sender = ?", chatID, string(domain.SenderUser)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// ModelUsage groups assistant messages by logical model, nulls excluded.
func (s *GormStore) ModelUsage() ([]domain.ModelUsage, error) {
	var rows []struct {
		Model string
		Count int
	}
	if err := s.db.Model(&MessageModel{}).
		Select("model, COUNT(*) AS count").
		Where("sender = ? AND model IS NOT NULL", string(domain.SenderAI)).
		Group("model").
		Order("count DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	res := make([]domain.ModelUsage, 0, len(rows))
	for _, row := range rows {
		res = append(res, domain.ModelUsage{Model: row.Model, Count: row.Count})
	}
	return res, nil
}

func userToModel(u domain.User) UserModel {
	var profile []byte
	if len(u.ProviderProfile) > 0 {
		profile, _ = json.Marshal(u.ProviderProfile)
	}
	return UserModel{
		ID:                u.ID,
		Name:              u.Name,
		Email:             u.Email,
		PasswordHash:      u.PasswordHash,
		Provider:          string(u.Provider),
		Role:              string(u.Role),
		SubscriptionStart: u.SubscriptionStart,
		SubscriptionEnd:   u.SubscriptionEnd,
		StripeCustomerID:  u.StripeCustomerID,
		ProviderProfile:   profile,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	var profile map[string]any
	if len(m.ProviderProfile) > 0 {
		_ = json.Unmarshal(m.ProviderProfile, &profile)
	}
	provider := domain.Provider(m.Provider)
	if provider == "" {
		provider = domain.ProviderLocal
	}
	return domain.User{
		ID:                m.ID,
		Name:              m.Name,
		Email:             m.Email,
		PasswordHash:      m.PasswordHash,
		Provider:          provider,
		Role:              domain.UserRole(m.Role),
		SubscriptionStart: m.SubscriptionStart,
		SubscriptionEnd:   m.SubscriptionEnd,
		StripeCustomerID:  m.StripeCustomerID,
		ProviderProfile:   profile,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

func chatToModel(c domain.Chat) ChatModel {
	return ChatModel{
		ID:        c.ID,
		UserID:    c.UserID,
		Title:     c.Title,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func chatFromModel(m ChatModel) domain.Chat {
	return domain.Chat{
		ID:        m.ID,
		UserID:    m.UserID,
		Title:     m.Title,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func messageToModel(msg domain.Message) MessageModel {
	return MessageModel{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		Sender:    string(msg.Sender),
		Model:     msg.Model,
		Text:      msg.Text,
		CreatedAt: msg.CreatedAt,
	}
}

func messageFromModel(m MessageModel) domain.Message {
	return domain.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		Sender:    domain.Sender(m.Sender),
		Model:     m.Model,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
	}
}
