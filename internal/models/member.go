package models

import "time"

// Member 会员（推荐关系由 ParentID / IndirectParentID 指针构成）
type Member struct {
	ID               int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID         int64     `gorm:"index;not null" json:"tenant_id"`
	Nickname         string    `gorm:"type:varchar(50);not null;default:''" json:"nickname"`
	OpenID           *string   `gorm:"column:openid;type:varchar(64)" json:"-"`
	ParentID         *int64    `gorm:"index" json:"parent_id,omitempty"`
	IndirectParentID *int64    `gorm:"index" json:"indirect_parent_id,omitempty"`
	LevelID          int8      `gorm:"type:smallint;not null;default:0" json:"level_id"`
	Status           int8      `gorm:"type:smallint;not null;default:1" json:"status"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 表名
func (Member) TableName() string {
	return "members"
}

// MemberLevel 推荐等级
const (
	MemberLevelPlain = 0 // 普通会员
	MemberLevelC1    = 1 // 一级推荐人
	MemberLevelC2    = 2 // 顶级推荐人
)

// MemberStatus 会员状态
const (
	MemberStatusDisabled = 0 // 禁用
	MemberStatusActive   = 1 // 正常
)

// Blacklist 分销黑名单
type Blacklist struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	TenantID  int64     `gorm:"uniqueIndex:uk_blacklist_tenant_member;not null" json:"tenant_id"`
	MemberID  int64     `gorm:"uniqueIndex:uk_blacklist_tenant_member;not null" json:"member_id"`
	Reason    string    `gorm:"type:varchar(255);not null;default:''" json:"reason"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 表名
func (Blacklist) TableName() string {
	return "distribution_blacklists"
}
