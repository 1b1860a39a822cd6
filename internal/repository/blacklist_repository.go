package repository

import (
	"errors"
	"strings"

	"github.com/paygate-next/internal/models"

	"gorm.io/gorm"
)

// BlacklistRepository 黑名单与风控日志数据访问接口
type BlacklistRepository interface {
	Create(entry *models.Blacklist) error
	Update(entry *models.Blacklist) error
	Delete(id uint) error
	GetByID(id uint) (*models.Blacklist, error)
	GetByHash(entityHash string) (*models.Blacklist, error)
	List(filter BlacklistListFilter) ([]models.Blacklist, int64, error)
	CreateRiskLog(log *models.RiskLog) error
	ListRiskLogs(filter RiskLogListFilter) ([]models.RiskLog, int64, error)
}

// GormBlacklistRepository GORM 黑名单仓储实现
type GormBlacklistRepository struct {
	db *gorm.DB
}

// NewBlacklistRepository 创建黑名单仓储
func NewBlacklistRepository(db *gorm.DB) *GormBlacklistRepository {
	return &GormBlacklistRepository{db: db}
}

// Create 创建黑名单条目
func (r *GormBlacklistRepository) Create(entry *models.Blacklist) error {
	return r.db.Create(entry).Error
}

// Update 更新黑名单条目
func (r *GormBlacklistRepository) Update(entry *models.Blacklist) error {
	return r.db.Save(entry).Error
}

// Delete 删除黑名单条目（软删除）
func (r *GormBlacklistRepository) Delete(id uint) error {
	if id == 0 {
		return nil
	}
	return r.db.Delete(&models.Blacklist{}, id).Error
}

// GetByID 按ID获取黑名单条目
func (r *GormBlacklistRepository) GetByID(id uint) (*models.Blacklist, error) {
	if id == 0 {
		return nil, nil
	}
	var entry models.Blacklist
	if err := r.db.First(&entry, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// GetByHash 按实体摘要获取黑名单条目
func (r *GormBlacklistRepository) GetByHash(entityHash string) (*models.Blacklist, error) {
	entityHash = strings.TrimSpace(entityHash)
	if entityHash == "" {
		return nil, nil
	}
	var entry models.Blacklist
	if err := r.db.Where("entity_hash = ?", entityHash).First(&entry).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &entry, nil
}

// List 分页查询黑名单
func (r *GormBlacklistRepository) List(filter BlacklistListFilter) ([]models.Blacklist, int64, error) {
	query := r.db.Model(&models.Blacklist{})
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.Origin != "" {
		query = query.Where("origin = ?", filter.Origin)
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		cond, count := buildKeywordLikeCondition(r.db, []string{"entity_value", "reason"})
		if count > 0 {
			query = query.Where(cond, repeatLikeArgs("%"+keyword+"%", count)...)
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var entries []models.Blacklist
	if err := query.Order("id desc").Find(&entries).Error; err != nil {
		return nil, 0, err
	}
	return entries, total, nil
}

// CreateRiskLog 记录一次风控拦截
func (r *GormBlacklistRepository) CreateRiskLog(log *models.RiskLog) error {
	return r.db.Create(log).Error
}

// ListRiskLogs 分页查询风控日志
func (r *GormBlacklistRepository) ListRiskLogs(filter RiskLogListFilter) ([]models.RiskLog, int64, error) {
	query := r.db.Model(&models.RiskLog{})
	if filter.MerchantID != 0 {
		query = query.Where("merchant_id = ?", filter.MerchantID)
	}
	if filter.Type != nil {
		query = query.Where("type = ?", *filter.Type)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var logs []models.RiskLog
	if err := query.Order("id desc").Find(&logs).Error; err != nil {
		return nil, 0, err
	}
	return logs, total, nil
}
