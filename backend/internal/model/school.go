package model

import (
	"encoding/json"

	"gorm.io/datatypes"
)

// SchoolType 参会主体类型
type SchoolType string

const (
	SchoolTypeSchool              SchoolType = "school"
	SchoolTypeIndividual          SchoolType = "individual"
	SchoolTypeForeignerIndividual SchoolType = "foreigner-individual"
)

// Leader 领队联系方式
type Leader struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// School 参会学校（学校 ID 同时作为申请 ID）
type School struct {
	ID               string                             `gorm:"type:varchar(64);primaryKey" json:"id"`
	Name             string                             `gorm:"type:varchar(128);not null" json:"name"`
	Identifier       string                             `gorm:"type:varchar(128);index" json:"identifier"`
	Type             SchoolType                         `gorm:"type:varchar(32);not null" json:"type"`
	Stage            string                             `gorm:"type:varchar(32);not null;index" json:"stage"`
	NgQuota          datatypes.JSONType[map[string]int] `gorm:"column:ng_quota" json:"ng-quota"`
	SeatPreallocated *datatypes.JSON                    `gorm:"column:seat_preallocated" json:"seat_preallocated,omitempty"`
	Leader           datatypes.JSONType[Leader]         `json:"leader"`
	LastMsg          string                             `gorm:"type:text" json:"last_msg,omitempty"`
	BaseModel
}

func (School) TableName() string { return "schools" }

// Preallocation 解析第二轮预分配名额，未预分配时返回 nil
func (s *School) Preallocation() (map[string]int, error) {
	if s.SeatPreallocated == nil || len(*s.SeatPreallocated) == 0 || string(*s.SeatPreallocated) == "null" {
		return nil, nil
	}
	var seats map[string]int
	if err := json.Unmarshal(*s.SeatPreallocated, &seats); err != nil {
		return nil, err
	}
	return seats, nil
}

// SchoolSeat 名额账本行：(学校, 轮次, 会场) → 名额数
type SchoolSeat struct {
	SchoolID  string `gorm:"type:varchar(64);primaryKey" json:"school"`
	Round     string `gorm:"type:varchar(8);primaryKey" json:"round"`
	SessionID string `gorm:"type:varchar(64);primaryKey" json:"session"`
	Count     int    `gorm:"not null;default:0" json:"count"`
}

func (SchoolSeat) TableName() string { return "school_seats" }

// SeatMap 轮次 → 会场 → 名额数
type SeatMap map[string]map[string]int

// NewSeatMap 由账本行组装名额表，零值行不出现在结果中
func NewSeatMap(rows []SchoolSeat) SeatMap {
	m := SeatMap{}
	for _, r := range rows {
		if _, ok := m[r.Round]; !ok {
			m[r.Round] = map[string]int{}
		}
		if r.Count > 0 {
			m[r.Round][r.SessionID] = r.Count
		}
	}
	return m
}

// Get 读取指定轮次、会场的名额，缺失视为 0
func (m SeatMap) Get(round, session string) int {
	return m[round][session]
}

// Total 各轮名额按会场合计
func (m SeatMap) Total() map[string]int {
	total := map[string]int{}
	for _, sessions := range m {
		for id, n := range sessions {
			total[id] += n
		}
	}
	return total
}
