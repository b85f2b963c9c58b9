package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"tinylink/internal/apperrors"
	"tinylink/internal/model"
)

const defaultMaxAttempts = 5

// CodeGenerator 生成候选短码
type CodeGenerator interface {
	Generate() (string, error)
}

// ListOptions 列表查询条件，零值表示全部
// Offset 仅在 Limit > 0 时生效
type ListOptions struct {
	Query  string
	Limit  int
	Offset int
}

// Stats 汇总统计
type Stats struct {
	TotalLinks  int64 `json:"total_links"`
	TotalClicks int64 `json:"total_clicks"`
}

// LinkStore 链接存储，基于 gorm
type LinkStore struct {
	db          *gorm.DB
	gen         CodeGenerator
	maxAttempts int
	now         func() time.Time
}

// Option 配置 LinkStore
type Option func(*LinkStore)

// WithMaxAttempts 设置自动生成短码冲突时的最大尝试次数
func WithMaxAttempts(n int) Option {
	return func(s *LinkStore) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithClock 替换时间来源
func WithClock(now func() time.Time) Option {
	return func(s *LinkStore) {
		s.now = now
	}
}

// New 创建 LinkStore
func New(db *gorm.DB, gen CodeGenerator, opts ...Option) *LinkStore {
	s := &LinkStore{
		db:          db,
		gen:         gen,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Migrate 自动迁移 links 表
func (s *LinkStore) Migrate(ctx context.Context) error {
	db := s.db.WithContext(ctx)
	if err := db.AutoMigrate(&model.Link{}); err != nil {
		return err
	}
	// MySQL 默认排序规则不区分大小写，短码需要按字节比较
	if db.Dialector.Name() == "mysql" {
		return db.Exec("ALTER TABLE `links` MODIFY `code` VARCHAR(8) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin NOT NULL").Error
	}
	return nil
}

// Create 创建链接；code 为空时自动生成
// 自定义短码冲突直接返回 DuplicateCode；自动生成的短码冲突时重试，最多 maxAttempts 次
func (s *LinkStore) Create(ctx context.Context, targetURL, code string) (*model.Link, error) {
	if code != "" {
		return s.insert(ctx, targetURL, code)
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		candidate, err := s.gen.Generate()
		if err != nil {
			return nil, apperrors.Store("generate code", err)
		}
		link, err := s.insert(ctx, targetURL, candidate)
		if err == nil {
			return link, nil
		}
		if !apperrors.IsDuplicateCode(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *LinkStore) insert(ctx context.Context, targetURL, code string) (*model.Link, error) {
	link := &model.Link{Code: code, TargetURL: targetURL}
	if err := s.db.WithContext(ctx).Create(link).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, apperrors.DuplicateCode(err)
		}
		return nil, apperrors.Store("create link", err)
	}
	return link, nil
}

// FindByCode 精确查找，不存在时返回 nil
func (s *LinkStore) FindByCode(ctx context.Context, code string) (*model.Link, error) {
	var link model.Link
	err := s.db.WithContext(ctx).Where("code = ?", code).Take(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Store("find link", err)
	}
	return &link, nil
}

// List 按创建时间倒序列出链接
func (s *LinkStore) List(ctx context.Context, opts ListOptions) ([]model.Link, error) {
	q := s.db.WithContext(ctx).Model(&model.Link{})
	if opts.Query != "" {
		like := "%" + escapeLike(strings.ToLower(opts.Query)) + "%"
		q = q.Where("LOWER(code) LIKE ? ESCAPE '!' OR LOWER(url) LIKE ? ESCAPE '!'", like, like)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
		if opts.Offset > 0 {
			q = q.Offset(opts.Offset)
		}
	}

	links := make([]model.Link, 0)
	if err := q.Order("created_at DESC").Order("id DESC").Find(&links).Error; err != nil {
		return nil, apperrors.Store("list links", err)
	}
	return links, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer("!", "!!", "%", "!%", "_", "!_").Replace(s)
}

// RecordClick 原子地将点击数加一并刷新最后点击时间，返回更新后的链接
// 链接不存在时返回 nil
func (s *LinkStore) RecordClick(ctx context.Context, code string) (*model.Link, error) {
	var link *model.Link
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Link{}).Where("code = ?", code).Updates(map[string]interface{}{
			"total_clicks": gorm.Expr("total_clicks + ?", 1),
			"last_clicked": s.now(),
		})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		var updated model.Link
		if err := tx.Where("code = ?", code).Take(&updated).Error; err != nil {
			return err
		}
		link = &updated
		return nil
	})
	if err != nil {
		return nil, apperrors.Store("record click", err)
	}
	return link, nil
}

// DeleteByCode 删除链接并返回被删除的记录，不存在时返回 nil
func (s *LinkStore) DeleteByCode(ctx context.Context, code string) (*model.Link, error) {
	var link *model.Link
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.Link
		err := tx.Where("code = ?", code).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(&existing).Error; err != nil {
			return err
		}
		link = &existing
		return nil
	})
	if err != nil {
		return nil, apperrors.Store("delete link", err)
	}
	return link, nil
}

// Exists 检查短码是否已被占用
func (s *LinkStore) Exists(ctx context.Context, code string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&model.Link{}).Where("code = ?", code).Count(&count).Error; err != nil {
		return false, apperrors.Store("check code", err)
	}
	return count > 0, nil
}

// Stats 返回链接总数与总点击数
func (s *LinkStore) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	db := s.db.WithContext(ctx).Model(&model.Link{})
	if err := db.Count(&stats.TotalLinks).Error; err != nil {
		return Stats{}, apperrors.Store("count links", err)
	}
	if err := s.db.WithContext(ctx).Model(&model.Link{}).Select("COALESCE(SUM(total_clicks), 0)").Scan(&stats.TotalClicks).Error; err != nil {
		return Stats{}, apperrors.Store("sum clicks", err)
	}
	return stats, nil
}

// Ping 检查数据库连通性
func (s *LinkStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
