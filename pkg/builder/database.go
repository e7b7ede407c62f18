package builder

import "github.com/resumeforge/backend/internal/models"

func (b *Builder) WithDatabase(cfg models.DatabaseConfig) *Builder {
	b.cfg.Database = &cfg
	return b
}

func (b *Builder) WithSQLite(filePath string) *Builder {
	b.cfg.Database = &models.DatabaseConfig{
		Type:     models.SQLite,
		FilePath: filePath,
	}
	return b
}
