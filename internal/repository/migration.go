package repository

import (
	"fmt"

	"relay-chat/internal/domain/conversation"
	"relay-chat/internal/domain/group"
	"relay-chat/internal/domain/message"

	"gorm.io/gorm"
)

// Models lists every persisted entity in dependency order.
func Models() []interface{} {
	return []interface{}{
		&conversation.Conversation{},
		&conversation.Participant{},
		&group.Group{},
		&group.Member{},
		&message.Message{},
		&message.Reaction{},
		&message.Deletion{},
		&message.Receipt{},
	}
}

// InitSchema creates or updates tables and indexes for all models.
func InitSchema(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migration failed: %w", err)
	}
	return nil
}

// TableNames returns the table of every model, for status reporting.
func TableNames(db *gorm.DB) ([]string, error) {
	names := make([]string, 0, len(Models()))
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(model); err != nil {
			return nil, err
		}
		names = append(names, stmt.Schema.Table)
	}
	return names, nil
}

// TruncateAll removes every row from every table.
func TruncateAll(db *gorm.DB) error {
	names, err := TableNames(db)
	if err != nil {
		return err
	}
	return db.Transaction(func(tx *gorm.DB) error {
		for i := len(names) - 1; i >= 0; i-- {
			if err := tx.Exec(fmt.Sprintf("DELETE FROM %s", tx.Statement.Quote(names[i]))).Error; err != nil {
				return fmt.Errorf("failed to truncate %s: %w", names[i], err)
			}
		}
		return nil
	})
}

// DropAll removes every table, dependents first.
func DropAll(db *gorm.DB) error {
	models := Models()
	for i := len(models) - 1; i >= 0; i-- {
		if err := db.Migrator().DropTable(models[i]); err != nil {
			return fmt.Errorf("failed to drop %T: %w", models[i], err)
		}
	}
	return nil
}
