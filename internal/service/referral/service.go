package referral

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"invest-core/internal/model"
	"invest-core/pkg/database"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Build 为新用户写入推荐闭包：沿 referrer_id 向上最多 4 跳，每个祖先一行
// 必须在创建用户的同一事务中调用，返回写入的行数
func Build(tx *gorm.DB, newUserID uint64, referrerID *uint64) (int, error) {
	inserted := 0
	visited := map[uint64]struct{}{newUserID: {}}
	current := referrerID

	for level := 1; level <= model.MaxReferralLevel && current != nil; level++ {
		if _, seen := visited[*current]; seen {
			// 数据异常导致的环，停止上溯
			break
		}
		visited[*current] = struct{}{}

		var ancestor model.User
		// 已软删的祖先仍保留层级关系
		err := tx.Unscoped().Select("id", "referrer_id").First(&ancestor, *current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			break
		}
		if err != nil {
			return inserted, fmt.Errorf("load ancestor %d: %w", *current, err)
		}

		rel := model.ReferralRelationship{
			ReferrerID: ancestor.ID,
			ReferredID: newUserID,
			Level:      level,
		}
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "referrer_id"}, {Name: "referred_id"}, {Name: "level"}},
			DoNothing: true,
		}).Create(&rel)
		if res.Error != nil {
			return inserted, fmt.Errorf("insert level %d relationship: %w", level, res.Error)
		}
		inserted += int(res.RowsAffected)

		current = ancestor.ReferrerID
	}
	return inserted, nil
}

// LevelStats 单层团队统计
type LevelStats struct {
	Level           int             `json:"level"`
	MemberCount     int64           `json:"member_count"`
	TotalInvestment decimal.Decimal `json:"total_investment"`
	TotalCommission decimal.Decimal `json:"total_commission"`
}

// TeamStats 团队汇总
type TeamStats struct {
	TotalTeamMembers      int64           `json:"total_team_members"`
	TotalTeamInvestment   decimal.Decimal `json:"total_team_investment"`
	TotalCommissionEarned decimal.Decimal `json:"total_commission_earned"`
	Levels                []LevelStats    `json:"levels"`
}

// TeamMember 某一层的下级成员
type TeamMember struct {
	ID              uint64          `json:"id"`
	FullName        string          `json:"full_name"`
	Email           string          `json:"email"`
	JoinedAt        time.Time       `json:"joined_at"`
	TotalInvested   decimal.Decimal `json:"total_invested"`
	InvestmentCount int64           `json:"investment_count"`
}

type Service struct {
	db *gorm.DB
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// DownlineIDs 所有层级的下级用户 (去重)
func DownlineIDs(db *gorm.DB, userID uint64) ([]uint64, error) {
	var ids []uint64
	err := db.Model(&model.ReferralRelationship{}).
		Where("referrer_id = ?", userID).
		Distinct().
		Pluck("referred_id", &ids).Error
	return ids, err
}

func (s *Service) DownlineIDs(ctx context.Context, userID uint64) ([]uint64, error) {
	return DownlineIDs(s.db.WithContext(ctx), userID)
}

// Ancestor 一条上级关系及其上级用户 (含已软删)
type Ancestor struct {
	model.ReferralRelationship
	Referrer *model.User `json:"referrer,omitempty"`
}

// LoadAncestors 按层级返回用户的上级
// users 表自身也有 referrer_id，不走关联预加载，按 id 显式加载上级
func LoadAncestors(db *gorm.DB, userID uint64) ([]Ancestor, error) {
	var rels []model.ReferralRelationship
	if err := db.Where("referred_id = ?", userID).Order("level ASC").Find(&rels).Error; err != nil {
		return nil, err
	}
	if len(rels) == 0 {
		return []Ancestor{}, nil
	}

	ids := make([]uint64, 0, len(rels))
	for _, r := range rels {
		ids = append(ids, r.ReferrerID)
	}
	var users []model.User
	if err := db.Unscoped().Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	byID := make(map[uint64]*model.User, len(users))
	for i := range users {
		byID[users[i].ID] = &users[i]
	}

	out := make([]Ancestor, 0, len(rels))
	for _, r := range rels {
		out = append(out, Ancestor{ReferralRelationship: r, Referrer: byID[r.ReferrerID]})
	}
	return out, nil
}

func (s *Service) Ancestors(ctx context.Context, userID uint64) ([]Ancestor, error) {
	return LoadAncestors(s.db.WithContext(ctx), userID)
}

// TeamStatistics 1..4 层团队人数、业绩和来自该层的佣金
func (s *Service) TeamStatistics(ctx context.Context, userID uint64) (*TeamStats, error) {
	db := s.db.WithContext(ctx)

	var rels []model.ReferralRelationship
	if err := db.Select("referred_id", "level").Where("referrer_id = ?", userID).Find(&rels).Error; err != nil {
		return nil, err
	}

	byLevel := make(map[int][]uint64, model.MaxReferralLevel)
	all := make(map[uint64]struct{})
	for _, r := range rels {
		byLevel[r.Level] = append(byLevel[r.Level], r.ReferredID)
		all[r.ReferredID] = struct{}{}
	}

	stats := &TeamStats{TotalTeamMembers: int64(len(all))}

	allIDs := make([]uint64, 0, len(all))
	for id := range all {
		allIDs = append(allIDs, id)
	}
	var err error
	if stats.TotalTeamInvestment, err = SumInvestments(db, allIDs); err != nil {
		return nil, err
	}
	if stats.TotalCommissionEarned, err = database.Sum(
		db.Model(&model.ReferralIncome{}).Where("recipient_id = ?", userID), "amount"); err != nil {
		return nil, err
	}

	for level := 1; level <= model.MaxReferralLevel; level++ {
		ids := byLevel[level]
		ls := LevelStats{Level: level, MemberCount: int64(len(ids))}
		if ls.TotalInvestment, err = SumInvestments(db, ids); err != nil {
			return nil, err
		}
		if ls.TotalCommission, err = database.Sum(
			db.Model(&model.ReferralIncome{}).Where("recipient_id = ? AND level = ?", userID, level), "amount"); err != nil {
			return nil, err
		}
		stats.Levels = append(stats.Levels, ls)
	}
	return stats, nil
}

// TeamByLevel 某一层的成员，按累计投资降序
func (s *Service) TeamByLevel(ctx context.Context, userID uint64, level int) ([]TeamMember, error) {
	if level < 1 || level > model.MaxReferralLevel {
		return []TeamMember{}, nil
	}
	db := s.db.WithContext(ctx)

	var ids []uint64
	if err := db.Model(&model.ReferralRelationship{}).
		Where("referrer_id = ? AND level = ?", userID, level).
		Distinct().
		Pluck("referred_id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []TeamMember{}, nil
	}

	var users []model.User
	if err := db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}

	members := make([]TeamMember, 0, len(users))
	for _, u := range users {
		m := TeamMember{ID: u.ID, FullName: u.FullName, Email: u.Email, JoinedAt: u.CreatedAt}
		if err := db.Model(&model.Investment{}).Where("user_id = ?", u.ID).Count(&m.InvestmentCount).Error; err != nil {
			return nil, err
		}
		total, err := SumInvestments(db, []uint64{u.ID})
		if err != nil {
			return nil, err
		}
		m.TotalInvested = total
		members = append(members, m)
	}

	sort.SliceStable(members, func(i, j int) bool {
		return members[i].TotalInvested.GreaterThan(members[j].TotalInvested)
	})
	return members, nil
}

// SumInvestments 一组用户的未删除投资本金之和 (任意状态)
func SumInvestments(db *gorm.DB, userIDs []uint64) (decimal.Decimal, error) {
	if len(userIDs) == 0 {
		return decimal.Zero, nil
	}
	return database.Sum(db.Model(&model.Investment{}).Where("user_id IN ?", userIDs), "amount")
}
